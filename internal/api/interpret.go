package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Interpret turns the outcome of a create or update call into an error.
// A transport failure is returned as a *TransportError. A 2xx response is
// success, and its body is decoded into out when both are non-empty. Any
// other status is a *RejectionError.
func Interpret(resp *Response, transportErr error, out any) error {
	if transportErr != nil {
		var te *TransportError
		if errors.As(transportErr, &te) {
			return te
		}
		return &TransportError{Err: transportErr}
	}
	if resp == nil {
		return &TransportError{Err: errors.New("no response received")}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RejectionError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to decode Jira response: %w", err)
	}
	return nil
}

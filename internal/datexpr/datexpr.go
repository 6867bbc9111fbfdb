// Package datexpr evaluates $NOW date expressions such as "$NOW",
// "$NOW+5", "$NOW+1d" and "$NOW-8h" into ISO-8601 timestamps.
//
// An offset without a unit is in minutes. Units use the moment.js
// vocabulary that resource configurations are written in: single-letter
// units are case-sensitive ("M" is months, "m" is minutes), long names are
// not ("Days", "hours").
package datexpr

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout is the timestamp format produced by Parse.
const Layout = "2006-01-02T15:04:05.000Z07:00"

var exprRe = regexp.MustCompile(`^\$(?i:NOW)([+-]\d+)?([a-zA-Z]+)?$`)

// ParseError reports a date expression that cannot be turned into a valid
// timestamp.
type ParseError struct {
	Expr   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid date expression %q: %s", e.Expr, e.Reason)
}

// unit is either a fixed duration or a calendar step.
type unit struct {
	fixed  time.Duration
	days   int
	months int
}

var singleLetterUnits = map[string]unit{
	"y":  {months: 12},
	"Q":  {months: 3},
	"M":  {months: 1},
	"w":  {days: 7},
	"d":  {days: 1},
	"h":  {fixed: time.Hour},
	"m":  {fixed: time.Minute},
	"s":  {fixed: time.Second},
	"ms": {fixed: time.Millisecond},
}

var namedUnits = map[string]unit{
	"year":        {months: 12},
	"quarter":     {months: 3},
	"month":       {months: 1},
	"week":        {days: 7},
	"day":         {days: 1},
	"hour":        {fixed: time.Hour},
	"minute":      {fixed: time.Minute},
	"second":      {fixed: time.Second},
	"millisecond": {fixed: time.Millisecond},
}

// Match reports whether s is a date expression. Strings that do not match
// belong to ordinary text resolution.
func Match(s string) bool {
	return exprRe.MatchString(s)
}

// Parser evaluates expressions relative to Now.
type Parser struct {
	Now func() time.Time
}

// New returns a Parser using the wall clock.
func New() *Parser {
	return &Parser{Now: time.Now}
}

// Parse evaluates expr and formats the result with Layout in UTC.
func (p *Parser) Parse(expr string) (string, error) {
	t, err := p.ParseTime(expr)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(Layout), nil
}

// ParseTime evaluates expr to an instant.
func (p *Parser) ParseTime(expr string) (time.Time, error) {
	m := exprRe.FindStringSubmatch(expr)
	if m == nil {
		return time.Time{}, &ParseError{Expr: expr, Reason: "expected $NOW, $NOW+N or $NOW-N followed by an optional unit"}
	}

	now := time.Now
	if p != nil && p.Now != nil {
		now = p.Now
	}
	base := now()

	u := unit{fixed: time.Minute}
	if m[2] != "" {
		var ok bool
		u, ok = lookupUnit(m[2])
		if !ok {
			return time.Time{}, &ParseError{Expr: expr, Reason: fmt.Sprintf("unknown unit %q", m[2])}
		}
	}

	if m[1] == "" {
		return base, nil
	}

	amount, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, &ParseError{Expr: expr, Reason: "offset out of range"}
	}

	t, err := apply(base, amount, u)
	if err != nil {
		return time.Time{}, &ParseError{Expr: expr, Reason: err.Error()}
	}
	if y := t.UTC().Year(); y < 0 || y > 9999 {
		return time.Time{}, &ParseError{Expr: expr, Reason: "result is outside the representable year range"}
	}
	return t, nil
}

func lookupUnit(name string) (unit, bool) {
	if u, ok := singleLetterUnits[name]; ok {
		return u, true
	}
	lower := strings.ToLower(name)
	if u, ok := namedUnits[lower]; ok {
		return u, true
	}
	if u, ok := namedUnits[strings.TrimSuffix(lower, "s")]; ok {
		return u, true
	}
	return unit{}, false
}

func apply(base time.Time, amount int64, u unit) (time.Time, error) {
	switch {
	case u.fixed != 0:
		if amount > math.MaxInt64/int64(u.fixed) || amount < math.MinInt64/int64(u.fixed) {
			return time.Time{}, fmt.Errorf("offset out of range")
		}
		return base.Add(time.Duration(amount) * u.fixed), nil
	case u.days != 0:
		if amount > math.MaxInt32 || amount < math.MinInt32 {
			return time.Time{}, fmt.Errorf("offset out of range")
		}
		return base.AddDate(0, 0, int(amount)*u.days), nil
	default:
		if amount > math.MaxInt32/12 || amount < math.MinInt32/12 {
			return time.Time{}, fmt.Errorf("offset out of range")
		}
		return addMonths(base, int(amount)*u.months), nil
	}
}

// addMonths moves t by n calendar months, clamping the day to the end of
// the target month (Jan 31 + 1 month is the last day of February).
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

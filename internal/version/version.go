// Package version provides the jira-resource version constant.
// The Version constant is updated during the release workflow.
package version

// Version is the current jira-resource version.
const Version = "1.0.2"

// UserAgent returns the User-Agent sent with every Jira request.
func UserAgent(product string) string {
	if product == "" {
		product = "jira-resource"
	}
	return product + "/" + Version
}

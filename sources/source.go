package sources

import (
	"fmt"
	"regexp"

	"github.com/marcelsud/webhook-inspector/signature"
)

// sourceIDPattern keeps source ids usable as a single path segment
var sourceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

/* Source is a named capture endpoint, addressed as /capture/{source_id}/...
 * Decides the status code returned to the sender
 */
type Source struct {
	SourceID      string
	StatusCode    int
	Description   string
	SigningSecret string // Optional: whsec_ secret used by the CLI to verify captured signatures
}

// Validate checks if the source configuration is valid
func (s *Source) Validate() error {
	if s.SourceID == "" {
		return fmt.Errorf("source_id cannot be empty")
	}
	if !sourceIDPattern.MatchString(s.SourceID) {
		return fmt.Errorf("source_id must match %s (got %q)", sourceIDPattern, s.SourceID)
	}
	if s.StatusCode < 200 || s.StatusCode > 599 {
		return fmt.Errorf("status_code must be between 200 and 599 for source %s (got %d)", s.SourceID, s.StatusCode)
	}
	if s.SigningSecret != "" {
		if _, err := signature.ParseSecret(s.SigningSecret); err != nil {
			return fmt.Errorf("invalid signing_secret for source %s: %w", s.SourceID, err)
		}
	}
	return nil
}

// Secret returns the parsed signing secret, if any
func (s *Source) Secret() (signature.Secret, bool) {
	if s.SigningSecret == "" {
		return signature.Secret{}, false
	}
	secret, err := signature.ParseSecret(s.SigningSecret)
	if err != nil {
		return signature.Secret{}, false
	}
	return secret, true
}

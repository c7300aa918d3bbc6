// Package gallery talks to the face-matching search service: it submits selfies,
// classifies the outcome and normalizes the returned matches.
package gallery

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/selfie-finder/internal/constants"
)

// File is one image submitted to the search endpoint.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// MatchRecord is one candidate photo. URL is absolute and space-safe;
// Distance is 0 for a perfect match and grows as similarity drops.
type MatchRecord struct {
	URL      string  `json:"url"`
	Distance float64 `json:"distance"`
}

// SearchOutcome is the result of one submission. Either Error is set, or Matches
// holds the (possibly empty) ranked list.
type SearchOutcome struct {
	Matches []MatchRecord `json:"matches"`
	Error   string        `json:"error,omitempty"`
	Err     error         `json:"-"`
}

// Failed reports whether the submission failed.
func (o SearchOutcome) Failed() bool {
	return o.Error != ""
}

// Errors classifying a failed submission.
var (
	ErrTransport         = errors.New("search request did not complete")
	ErrMalformedResponse = errors.New("search response is malformed")
	ErrNoFiles           = errors.New("no files to submit")
	ErrTooManyFiles      = errors.New("upload field accepts a single file")
)

// ServiceError is a non-success response from the search service.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("search service returned status %d: %s", e.StatusCode, e.Message)
}

func failure(err error, message string) SearchOutcome {
	return SearchOutcome{Matches: []MatchRecord{}, Error: message, Err: err}
}

// FieldName is the multipart field convention of the search service.
type FieldName string

const (
	// FieldFile sends exactly one image under "file".
	FieldFile FieldName = "file"
	// FieldFiles sends one or more images under a repeated "files" field.
	FieldFiles FieldName = "files"
)

// ParseFieldName validates a configured field name.
func ParseFieldName(s string) (FieldName, error) {
	switch FieldName(s) {
	case FieldFile, FieldFiles:
		return FieldName(s), nil
	default:
		return "", fmt.Errorf("unknown upload field %q (want %q or %q)", s, FieldFile, FieldFiles)
	}
}

// transportFailure wraps err as a transport failure outcome.
func transportFailure(err error) SearchOutcome {
	return failure(fmt.Errorf("%w: %w", ErrTransport, err), constants.MsgConnectFailed)
}

package gallery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// RawMatch is one entry of the service's "matches" array: either a bare path
// (RawMatchPath) or a record (RawMatchRecord).
type RawMatch interface {
	rawMatch()
}

// RawMatchPath is a bare path string such as "/photos/a b.jpg".
type RawMatchPath string

// RawMatchRecord is a {url, distance} object. Missing fields decode as zero values.
type RawMatchRecord struct {
	URL      string
	Distance float64
}

func (RawMatchPath) rawMatch()   {}
func (RawMatchRecord) rawMatch() {}

// RawMatches decodes a heterogeneous JSON array into RawMatch values.
type RawMatches []RawMatch

// UnmarshalJSON implements json.Unmarshaler.
func (m *RawMatches) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("matches must be an array: %w", err)
	}

	out := make(RawMatches, 0, len(items))
	for i, item := range items {
		match, err := decodeRawMatch(item)
		if err != nil {
			return fmt.Errorf("match %d: %w", i, err)
		}
		out = append(out, match)
	}
	*m = out
	return nil
}

func decodeRawMatch(data json.RawMessage) (RawMatch, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty entry")
	}

	switch trimmed[0] {
	case '"':
		var path string
		if err := json.Unmarshal(trimmed, &path); err != nil {
			return nil, err
		}
		return RawMatchPath(path), nil
	case '{':
		var rec struct {
			URL      *string  `json:"url"`
			Distance *float64 `json:"distance"`
		}
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return nil, err
		}
		var out RawMatchRecord
		if rec.URL != nil {
			out.URL = *rec.URL
		}
		if rec.Distance != nil {
			out.Distance = *rec.Distance
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported entry %s", trimmed)
	}
}

// Normalize converts raw matches into MatchRecords with absolute, space-safe URLs.
// Order is preserved. Entries without a URL are dropped.
func Normalize(baseURL string, raw []RawMatch) []MatchRecord {
	out := make([]MatchRecord, 0, len(raw))
	for _, m := range raw {
		var path string
		var distance float64
		switch v := m.(type) {
		case RawMatchPath:
			path = string(v)
		case RawMatchRecord:
			path, distance = v.URL, v.Distance
		}

		resolved := ResolveURL(baseURL, path)
		if resolved == "" {
			continue
		}
		out = append(out, MatchRecord{URL: resolved, Distance: distance})
	}
	return out
}

// ResolveURL prefixes a service-relative path with baseURL unless it is already
// an http(s) URL, and percent-encodes literal spaces.
func ResolveURL(baseURL, path string) string {
	if path == "" {
		return ""
	}
	if !isAbsoluteHTTP(path) {
		path = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	}
	return strings.ReplaceAll(path, " ", "%20")
}

func isAbsoluteHTTP(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// ServicePath returns the decoded path component of a match URL, the form the
// service expects back (e.g. "/photos/a b.jpg").
func ServicePath(matchURL string) string {
	u, err := url.Parse(matchURL)
	if err != nil || u.Path == "" {
		return strings.ReplaceAll(matchURL, "%20", " ")
	}
	return u.Path
}

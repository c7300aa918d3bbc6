package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrNothingToDownload is returned when no match was selected.
var ErrNothingToDownload = errors.New("no photos selected for download")

type downloadZipRequest struct {
	FilePaths []string `json:"file_paths"`
}

// DownloadZip asks the service to bundle the matched photos into one ZIP archive
// and streams it to w. It returns the number of bytes written.
func (c *Client) DownloadZip(ctx context.Context, matches []MatchRecord, w io.Writer) (int64, error) {
	if len(matches) == 0 {
		return 0, ErrNothingToDownload
	}

	req := downloadZipRequest{FilePaths: make([]string, 0, len(matches))}
	for _, m := range matches {
		req.FilePaths = append(req.FilePaths, ServicePath(m.URL))
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("could not marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolveURL("download_zip"), bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("could not create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return c.stream(httpReq, w)
}

// FetchPhoto downloads a single matched photo to w.
func (c *Client) FetchPhoto(ctx context.Context, photoURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photoURL, nil)
	if err != nil {
		return 0, fmt.Errorf("could not create request: %w", err)
	}
	return c.stream(req, w)
}

func (c *Client) stream(req *http.Request, w io.Writer) (int64, error) {
	resp, err := c.httpClient.Do(req) //nolint:gosec // URL constructed from validated parsedURL or a returned match
	if err != nil {
		return 0, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download failed with status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("could not read response body: %w", err)
	}
	return n, nil
}

// PhotoFilename derives a portable local file name from a match URL
// ("http://h/event/Jiří a.jpg" -> "Jiri_a.jpg").
func PhotoFilename(photoURL string) string {
	name := path.Base(ServicePath(photoURL))
	if name == "." || name == "/" {
		return "photo.jpg"
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, name); err == nil {
		name = folded
	}

	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	return name
}

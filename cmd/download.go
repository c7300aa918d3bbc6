package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/selfie-finder/internal/gallery"
)

var downloadCmd = &cobra.Command{
	Use:   "download <photo-url>...",
	Short: "Download matched photos",
	Long: `Download photos returned by a previous search, either one by one or as a
single zip archive built by the search service.

Examples:
  selfie-finder download http://gallery.local/photos/a.jpg http://gallery.local/photos/b.jpg
  selfie-finder download --zip --out ./photos $(selfie-finder find --json | jq -r '.matches[].url')`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().String("out", ".", "Directory to save the photos into")
	downloadCmd.Flags().Bool("zip", false, "Fetch a single matches.zip archive")
}

func runDownload(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	matches := make([]gallery.MatchRecord, 0, len(args))
	for _, u := range args {
		matches = append(matches, gallery.MatchRecord{URL: gallery.ResolveURL(a.gallery.BaseURL(), u)})
	}

	dir := mustGetString(cmd, "out")
	written, err := downloadMatches(cmd.Context(), a, matches, dir, mustGetBool(cmd, "zip"))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Downloaded %d photo(s) to %s\n", written, dir)
	return nil
}

// downloadMatches saves matches into dir and returns how many photos were saved.
// With asZip the service packs them into dir/matches.zip.
func downloadMatches(ctx context.Context, a *app, matches []gallery.MatchRecord, dir string, asZip bool) (int, error) {
	if len(matches) == 0 {
		return 0, gallery.ErrNothingToDownload
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create download directory: %w", err)
	}

	if asZip {
		return len(matches), downloadZip(ctx, a, matches, filepath.Join(dir, "matches.zip"))
	}

	bar := newProgressBar(len(matches), "Downloading")
	used := make(map[string]int)
	saved := 0
	var errs []error
	for _, m := range matches {
		if ctx.Err() != nil {
			return saved, ctx.Err()
		}
		name := uniqueName(gallery.PhotoFilename(m.URL), used)
		if err := downloadPhoto(ctx, a, m.URL, filepath.Join(dir, name)); err != nil {
			a.logger.Warn("photo download failed", "url", m.URL, "error", err)
			errs = append(errs, err)
		} else {
			saved++
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if saved == 0 {
		return 0, errors.Join(errs...)
	}
	if len(errs) > 0 {
		a.logger.Warn("some photos were not downloaded", "failed", len(errs), "saved", saved)
	}
	return saved, nil
}

func downloadZip(ctx context.Context, a *app, matches []gallery.MatchRecord, path string) error {
	f, err := os.Create(path) //nolint:gosec // user-provided output directory
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	n, err := a.gallery.DownloadZip(ctx, matches, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("zip download failed: %w", err)
	}
	a.logger.Debug("archive saved", "path", path, "bytes", n)
	return nil
}

func downloadPhoto(ctx context.Context, a *app, url, path string) error {
	f, err := os.Create(path) //nolint:gosec // user-provided output directory
	if err != nil {
		return err
	}
	_, err = a.gallery.FetchPhoto(ctx, url, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
	}
	return err
}

// uniqueName suffixes repeated file names: photo.jpg, photo_2.jpg, photo_3.jpg.
func uniqueName(name string, used map[string]int) string {
	used[name]++
	if used[name] == 1 {
		return name
	}
	ext := filepath.Ext(name)
	candidate := strings.TrimSuffix(name, ext) + "_" + strconv.Itoa(used[name]) + ext
	return uniqueName(candidate, used)
}

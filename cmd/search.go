package cmd

import (
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/selfie-finder/internal/constants"
	"github.com/kozaktomas/selfie-finder/internal/gallery"
	"github.com/kozaktomas/selfie-finder/internal/imageutil"
)

var searchCmd = &cobra.Command{
	Use:   "search <selfie-file>",
	Short: "Find matching photos for an existing selfie",
	Long: `Submit an existing photo to the search service instead of using the camera.

The photo is rotated upright, scaled down to at most --max-size pixels and
re-encoded as JPEG unless --raw is given. JPEG, PNG, GIF and WebP are accepted.

Examples:
  selfie-finder search me.jpg
  selfie-finder search me.webp --json
  selfie-finder search me.png --raw --download ./photos`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	addResultFlags(searchCmd)
	searchCmd.Flags().Bool("raw", false, "Submit the file unchanged")
	searchCmd.Flags().Int("max-size", 1600, "Longest edge of the submitted selfie in pixels")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read selfie: %w", err)
	}
	file := selfieFile(args[0], data)
	if !mustGetBool(cmd, "raw") && len(data) > 0 {
		prepared, err := imageutil.PrepareSelfie(data, mustGetInt(cmd, "max-size"), a.cfg.Capture.JPEGQuality)
		if err != nil {
			return fmt.Errorf("failed to prepare selfie (use --raw to send it unchanged): %w", err)
		}
		file = gallery.File{
			Name:        strings.TrimSuffix(file.Name, filepath.Ext(file.Name)) + ".jpg",
			ContentType: constants.FrameContentType,
			Data:        prepared,
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := a.coordinator.SearchWithFile(ctx, file)
	return finishSearch(ctx, cmd, a, state, err)
}

// selfieFile wraps a file read from disk, guessing its content type from the extension.
func selfieFile(path string, data []byte) gallery.File {
	name := filepath.Base(path)
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return gallery.File{Name: name, ContentType: contentType, Data: data}
}

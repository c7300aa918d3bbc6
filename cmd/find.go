package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/selfie-finder/internal/coordinator"
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Take a selfie with the camera and find matching photos",
	Long: `Take a selfie with the configured camera and search the gallery for it.

The capture policy decides how many frames are taken (CAPTURE_POLICY=single|burst).
Matches are listed best first. Use --download to fetch them afterwards.

Examples:
  selfie-finder find
  selfie-finder find --json
  selfie-finder find --download ./my-photos --zip`,
	Args: cobra.NoArgs,
	RunE: runFind,
}

func init() {
	rootCmd.AddCommand(findCmd)

	addResultFlags(findCmd)
}

// addResultFlags registers the output and download flags shared by find and search.
func addResultFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "Output the final state as JSON")
	cmd.Flags().String("download", "", "Download the matched photos into this directory")
	cmd.Flags().Bool("zip", false, "With --download, fetch a single matches.zip archive")
}

func runFind(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var bar *progressbar.ProgressBar
	if !mustGetBool(cmd, "json") {
		bar = newProgressBar(a.pipeline.Total(), "Capturing")
	}
	unwatch := watchProgress(a.coordinator, bar)
	state, err := a.coordinator.SearchWithCamera(ctx, a.pipeline)
	unwatch()

	return finishSearch(ctx, cmd, a, state, err)
}

// finishSearch prints the outcome of a search and downloads the matches when asked to.
func finishSearch(ctx context.Context, cmd *cobra.Command, a *app, state coordinator.GalleryState, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("search interrupted")
		}
		return err
	}

	if err := printState(cmd.OutOrStdout(), cmd.ErrOrStderr(), state, mustGetBool(cmd, "json")); err != nil {
		return err
	}

	dir := mustGetString(cmd, "download")
	if dir == "" || state.State != coordinator.StateDisplaying {
		return nil
	}
	written, err := downloadMatches(ctx, a, state.Matches, dir, mustGetBool(cmd, "zip"))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Downloaded %d photo(s) to %s\n", written, dir)
	return nil
}

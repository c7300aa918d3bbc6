package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/schollz/progressbar/v3"

	"github.com/kozaktomas/selfie-finder/internal/coordinator"
	"github.com/kozaktomas/selfie-finder/internal/gallery"
	"github.com/kozaktomas/selfie-finder/internal/logging"
)

// errSearchFailed makes the process exit non-zero after the error message was printed.
var errSearchFailed = errors.New("search failed")

// renderMatches writes the ranked matches as a table, best match first.
func renderMatches(w io.Writer, matches []gallery.MatchRecord) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Distance", "Photo"})
	for i, m := range matches {
		tw.AppendRow(table.Row{i + 1, strconv.FormatFloat(m.Distance, 'f', 4, 64), m.URL})
	}
	tw.AppendFooter(table.Row{"", "Total", len(matches)})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
	})
	tw.Render()
}

// printState reports a finished search on stdout, or its error message on stderr.
func printState(stdout, stderr io.Writer, state coordinator.GalleryState, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(state); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		if state.State == coordinator.StateError {
			return errSearchFailed
		}
		return nil
	}

	if state.State == coordinator.StateError {
		fmt.Fprintln(stderr, state.Error)
		return errSearchFailed
	}
	renderMatches(stdout, state.Matches)
	return nil
}

// newProgressBar returns a bar on stderr, or nil when stderr is not a terminal.
func newProgressBar(total int, description string) *progressbar.ProgressBar {
	if !logging.IsTerminal(os.Stderr) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionFullWidth(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
	)
}

// watchProgress follows coordinator events and mirrors capture progress on bar.
// The returned func stops watching and waits for the watcher to exit.
func watchProgress(coord *coordinator.Coordinator, bar *progressbar.ProgressBar) func() {
	events := coord.Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for ev := range events {
			if bar == nil {
				continue
			}
			switch {
			case ev.Type == coordinator.EventProgress && ev.State.Progress != nil:
				_ = bar.Set(ev.State.Progress.Current)
			case ev.State.State == coordinator.StateSubmitting:
				bar.Describe("Searching")
			}
		}
		if bar != nil {
			_ = bar.Finish()
		}
	}()

	return func() {
		coord.Unsubscribe(events)
		<-done
	}
}

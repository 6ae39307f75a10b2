package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/formbricks/collections/internal/models"
	"github.com/formbricks/collections/internal/service"
)

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.BlueString("clustering")),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowCount(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

// trackProgress drains the batch's progress stream, advancing a bar per finished image.
func trackProgress(batch *service.Batch, total int, show bool) {
	var bar *progressbar.ProgressBar
	if show && total > 0 {
		bar = newProgressBar(total)
	}

	failed := 0

	for ev := range batch.Progress() {
		if bar == nil || !ev.Terminal() {
			continue
		}

		if ev.Progress == models.ProgressFailed {
			failed++
			bar.Describe(color.RedString("clustering (%d failed)", failed))
		}

		_ = bar.Add(1)
	}

	if bar != nil {
		_ = bar.Finish()
	}
}

func printResult(w io.Writer, out result) {
	summary := out.Summary

	switch summary.Outcome {
	case models.OutcomeClustered:
		fmt.Fprintln(w, color.GreenString("✓ %s", summary.Message()))
	default:
		fmt.Fprintln(w, color.YellowString("%s", summary.Message()))
	}

	if summary.Skipped > 0 {
		fmt.Fprintln(w, color.HiBlackString("  %d file(s) skipped", summary.Skipped))
	}

	printClusters(w, out.Clusters)

	if out.Saved != nil {
		fmt.Fprintln(w, color.GreenString("✓ saved: %d created, %d updated, %d skipped",
			out.Saved.Created, out.Saved.Updated, out.Saved.Skipped))

		for _, title := range out.Saved.SkippedTitles {
			fmt.Fprintln(w, color.YellowString("  collection limit reached, not saved: %s", title))
		}
	}
}

func printClusters(w io.Writer, records []models.ClusterRecord) {
	title := color.New(color.FgCyan, color.Bold).SprintFunc()

	for _, r := range records {
		fmt.Fprintf(w, "\n%s %s\n", title(r.Title), color.HiBlackString("(%d images, %s)", r.Size(), r.ID))
		fmt.Fprintf(w, "  %s\n", r.Description)

		if len(r.Palette) > 0 {
			fmt.Fprintf(w, "  palette: %s\n", strings.Join(r.Palette, " "))
		}

		if len(r.Moods) > 0 {
			fmt.Fprintf(w, "  moods:   %s\n", strings.Join(r.Moods, ", "))
		}

		for _, img := range r.Images {
			fmt.Fprintf(w, "  - %s\n", img.Alt)
		}
	}
}

package handlers

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/mattn/go-isatty"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/orchestration"
	"github.com/imamik/ocp-installer/internal/state"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	readyStyle   = lipgloss.NewStyle().Foreground(colorGreen)
	failedStyle  = lipgloss.NewStyle().Foreground(colorRed)
	pendingStyle = lipgloss.NewStyle().Foreground(colorYellow)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
)

// newLogger returns a logger writing key/value lines to w.
func newLogger(w io.Writer, verbosity int) logr.Logger {
	var mu sync.Mutex
	return funcr.New(func(prefix, args string) {
		mu.Lock()
		defer mu.Unlock()
		if prefix != "" {
			fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(w, args)
	}, funcr.Options{LogTimestamp: true, Verbosity: verbosity})
}

// isInteractiveTTY reports whether stdout is a terminal.
func isInteractiveTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// styled applies s only when rendering for a terminal.
func styled(s lipgloss.Style, text string, color bool) string {
	if !color {
		return text
	}
	return s.Render(text)
}

// notLoaded is the phase shown for a cluster whose snapshot or archive
// failed to load.
const notLoaded = "not-loaded"

func phaseStyle(phase cluster.Phase) lipgloss.Style {
	switch phase {
	case cluster.PhaseReady, cluster.PhaseDestroyed:
		return readyStyle
	case cluster.PhaseFailed, cluster.PhaseDestroyFailed:
		return failedStyle
	default:
		return pendingStyle
	}
}

// renderSummary renders the outcome of a batch: one line per cluster and
// the count of clusters per final phase. Clusters that could not be loaded
// are listed as failed entries of their own.
func renderSummary(title string, records []*cluster.Record, err error, color bool) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styled(titleStyle, "  "+title, color))
	b.WriteString("\n")
	b.WriteString(styled(dimStyle, "  "+strings.Repeat("═", 30), color))
	b.WriteString("\n\n")

	b.WriteString(styled(dimStyle, fmt.Sprintf("  %-24s %-11s %-12s %-16s %s", "Cluster", "Platform", "Region", "Version", "Phase"), color))
	b.WriteString("\n")
	for _, rec := range records {
		ver := rec.Version
		if ver == "" {
			ver = rec.RequestedVersion
		}
		fmt.Fprintf(&b, "  %-24s %-11s %-12s %-16s %s\n",
			rec.Name, rec.Platform, rec.Region, ver,
			styled(phaseStyle(rec.Phase), string(rec.Phase), color))
		if rec.ConsoleURL != "" {
			b.WriteString(styled(dimStyle, "    console: "+rec.ConsoleURL, color))
			b.WriteString("\n")
		}
		if failure := orchestration.Failed(err, rec); failure != nil {
			b.WriteString(styled(failedStyle, "    error: "+failure.Error(), color))
			b.WriteString("\n")
		}
	}
	var unloaded state.LoadErrors
	errors.As(err, &unloaded)
	for _, failure := range unloaded {
		fmt.Fprintf(&b, "  %-24s %-11s %-12s %-16s %s\n", "(not loaded)", "-", "-", "-",
			styled(failedStyle, notLoaded, color))
		b.WriteString(styled(failedStyle, "    error: "+failure.Error(), color))
		b.WriteString("\n")
	}

	summary := orchestration.Summarize(records)
	phases := make([]string, 0, len(summary.Phases))
	for phase, n := range summary.Phases {
		phases = append(phases, fmt.Sprintf("%s=%d", phase, n))
	}
	if len(unloaded) > 0 {
		phases = append(phases, fmt.Sprintf("%s=%d", notLoaded, len(unloaded)))
	}
	sort.Strings(phases)

	b.WriteString("\n")
	b.WriteString(styled(sectionStyle, "  Summary", color))
	b.WriteString("\n")
	fmt.Fprintf(&b, "    Total:  %d\n", summary.Total+len(unloaded))
	fmt.Fprintf(&b, "    Phases: %s\n", strings.Join(phases, " "))

	return b.String()
}

// renderPlan renders the clusters a dry run would handle.
func renderPlan(action string, records []*cluster.Record, color bool) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styled(titleStyle, fmt.Sprintf("  Dry run: %s %d cluster(s)", action, len(records)), color))
	b.WriteString("\n")
	b.WriteString(styled(dimStyle, "  "+strings.Repeat("═", 30), color))
	b.WriteString("\n\n")
	for _, rec := range records {
		fmt.Fprintf(&b, "  %-24s %-11s %-12s %s (%s)\n", rec.Name, rec.Platform, rec.Region, rec.RequestedVersion, rec.Stream)
		b.WriteString(styled(dimStyle, fmt.Sprintf("    dir: %s  timeout: %s", rec.Dir, rec.Timeout), color))
		b.WriteString("\n")
	}
	return b.String()
}

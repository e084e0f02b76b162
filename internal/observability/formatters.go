// Package observability provides run metrics and formatted summaries for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/handle-crawler/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		// Truncate long lines
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRunSummary outputs the counters of a finished (or aborted) crawl.
func (p *Printer) PrintRunSummary(stats *types.RunStats) {
	if stats == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:       %s\n", stats.RunID))
	sb.WriteString(fmt.Sprintf("State:     %s\n", stats.State))
	sb.WriteString(fmt.Sprintf("Duration:  %s\n", stats.Duration().Round(time.Millisecond)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Pages:     %d fetched, %d skipped\n", stats.Pages, stats.PagesSkipped))
	sb.WriteString(fmt.Sprintf("Members:   %d processed, %d emitted\n", stats.Processed, stats.Emitted))
	if stats.Malformed > 0 {
		sb.WriteString(fmt.Sprintf("Malformed: %d cards\n", stats.Malformed))
	}
	if stats.DetailErrors > 0 || stats.EmitFailures > 0 {
		sb.WriteString(fmt.Sprintf("Errors:    %d detail, %d emit\n", stats.DetailErrors, stats.EmitFailures))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Handles:   %d found\n", stats.Handles))
	sb.WriteString(fmt.Sprintf("  • channels:     %d\n", stats.Channels))
	sb.WriteString(fmt.Sprintf("  • chats:        %d\n", stats.Chats))
	sb.WriteString(fmt.Sprintf("  • personal:     %d\n", stats.Personal))
	sb.WriteString(fmt.Sprintf("  • unclassified: %d (%d probe errors)", stats.Unclassified, stats.ProbeErrors))

	p.printBox("CRAWL SUMMARY", sb.String())
}

// PrintClassifiedHandles outputs probe results, one handle per line.
func (p *Printer) PrintClassifiedHandles(handles []types.ClassifiedHandle) {
	if len(handles) == 0 {
		return
	}

	var sb strings.Builder
	for i, h := range handles {
		sb.WriteString(fmt.Sprintf("@%s  [%s]", h.ID, h.Kind))
		if h.Kind == types.KindChannel {
			sb.WriteString(fmt.Sprintf("\n    %s (%d subscribers)", firstLine(h.Title), h.Subscribers))
		}
		if i < len(handles)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox(fmt.Sprintf("CLASSIFIED HANDLES (%d)", len(handles)), sb.String())
}

// PrintMemberRecord outputs a single emitted record.
func (p *Printer) PrintMemberRecord(rec *types.MemberRecord) {
	if rec == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s (@%s)\n", rec.FullName, rec.Nickname))

	channels := rec.Telegram.Channels
	if len(channels) > 0 {
		sb.WriteString("Channels:\n")
		count := min(len(channels), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s  %d\n", channels[i].ID, channels[i].Subscribers))
		}
		if len(channels) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(channels)-maxItemsToShow))
		}
	}
	if len(rec.Telegram.Chats) > 0 {
		sb.WriteString(fmt.Sprintf("Chats:    %s\n", strings.Join(rec.Telegram.Chats, ", ")))
	}
	if len(rec.Telegram.Personal) > 0 {
		sb.WriteString(fmt.Sprintf("Personal: %s\n", strings.Join(rec.Telegram.Personal, ", ")))
	}

	p.printBox("MEMBER", strings.TrimSuffix(sb.String(), "\n"))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

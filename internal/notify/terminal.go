package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"bybit-sentinel/internal/models"
)

// TerminalNotifier prints signals to the terminal with colored,
// boxed output. Writes are serialized so concurrent evaluations do
// not interleave boxes.
type TerminalNotifier struct {
	out io.Writer
	mu  sync.Mutex
}

var _ Channel = (*TerminalNotifier)(nil)

// NewTerminalNotifier creates a terminal channel writing to stdout.
func NewTerminalNotifier() *TerminalNotifier {
	return &TerminalNotifier{out: os.Stdout}
}

// Name returns the channel name.
func (t *TerminalNotifier) Name() string {
	return "terminal"
}

// IsEnabled always reports true; the terminal needs no credentials.
func (t *TerminalNotifier) IsEnabled() bool {
	return true
}

// SendSignal renders the signal box. Terminal output never fails the
// pipeline.
func (t *TerminalNotifier) SendSignal(ctx context.Context, sig models.Signal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprint(t.out, FormatSignalBox(sig))
	return nil
}

// FormatSignalBox renders a signal as a bordered block. Shared with
// the CLI so live output and stored-signal display look the same.
func FormatSignalBox(sig models.Signal) string {
	headline := color.New(color.FgGreen, color.Bold)
	if sig.Side == models.SideShort {
		headline = color.New(color.FgRed, color.Bold)
	}
	dim := color.New(color.Faint)

	var sb strings.Builder
	sb.WriteString("┌──────────────────────────────────────────────┐\n")
	sb.WriteString(fmt.Sprintf("│ %s %s\n", sideEmoji(sig.Side), headline.Sprint(signalHeadline(sig))))
	sb.WriteString("├──────────────────────────────────────────────┤\n")
	for _, line := range strings.Split(signalBody(sig), "\n") {
		sb.WriteString(fmt.Sprintf("│ %s\n", line))
	}
	sb.WriteString(fmt.Sprintf("│ %s\n", dim.Sprintf("at %s", sig.Timestamp.Format("2006-01-02 15:04:05 MST"))))
	sb.WriteString("└──────────────────────────────────────────────┘\n")
	return sb.String()
}

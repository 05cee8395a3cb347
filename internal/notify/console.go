package notify

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// ConsoleSink writes messages to the terminal with color.
type ConsoleSink struct {
	out io.Writer
}

// NewConsoleSink creates a console sink writing to stdout.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{out: os.Stdout}
}

// Name returns the sink identifier.
func (s *ConsoleSink) Name() string { return "console" }

// Send writes msg with a color-coded severity prefix.
func (s *ConsoleSink) Send(_ context.Context, msg Message) error {
	var prefix string
	switch msg.Level {
	case LevelError:
		prefix = color.RedString("[ERROR]")
	case LevelWarning:
		prefix = color.YellowString("[WARN]")
	default:
		prefix = color.CyanString("[INFO]")
	}
	_, err := fmt.Fprintf(s.out, "%s [%s] %s\n", prefix, msg.BatchID, msg.Text)
	return err
}

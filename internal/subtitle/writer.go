package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// DefaultWriter serializes SRT documents
type DefaultWriter struct{}

// NewWriter creates a new subtitle writer
func NewWriter() Writer {
	return &DefaultWriter{}
}

// WriteFile serializes the document to the file at path
func WriteFile(path string, subtitle *File, opts WriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	return NewWriter().Write(f, subtitle, opts)
}

// Write serializes the document. Each cue reproduces its original index
// and timestamps exactly. The translated line comes first; when
// IncludeOriginal is set, the original lines follow inside the same
// timing block. Cues without a translation fall back to their original
// text untouched.
func (w *DefaultWriter) Write(out io.Writer, subtitle *File, opts WriteOptions) error {
	if subtitle == nil {
		return fmt.Errorf("subtitle data is empty")
	}

	writer := bufio.NewWriter(out)

	for _, cue := range subtitle.Cues {
		fmt.Fprintf(writer, "%d\n", cue.Index)
		fmt.Fprintf(writer, "%s --> %s\n", formatDuration(cue.StartTime), formatDuration(cue.EndTime))

		for _, line := range cueOutputLines(cue, opts) {
			fmt.Fprintf(writer, "%s\n", line)
		}
		fmt.Fprintf(writer, "\n")
	}

	return writer.Flush()
}

func cueOutputLines(cue Cue, opts WriteOptions) []string {
	if cue.TranslatedText == "" {
		// passthrough: blank cue or failed batch
		if cue.Text == "" {
			return nil
		}
		return strings.Split(cue.Text, "\n")
	}

	lines := strings.Split(cue.TranslatedText, "\n")
	if opts.IncludeOriginal && cue.Text != "" {
		lines = append(lines, strings.Split(cue.Text, "\n")...)
	}
	return lines
}

// formatDuration formats time.Duration to the SRT timestamp format
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, milliseconds)
}

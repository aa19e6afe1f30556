package subtitle

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Reader is the interface for reading subtitle documents
type Reader interface {
	Read(r io.Reader) (*File, error)
}

// Writer is the interface for writing subtitle documents
type Writer interface {
	Write(w io.Writer, subtitle *File, opts WriteOptions) error
}

// Cue represents a single timed caption entry
type Cue struct {
	Index          int           // cue index, unique and increasing in document order
	StartTime      time.Duration // start time
	EndTime        time.Duration // end time
	Text           string        // original text, display lines joined with \n
	TranslatedText string        // translated text, empty until translation
}

// Blank reports whether the cue carries no translatable text.
// Blank cues pass through the pipeline untouched.
func (c Cue) Blank() bool {
	return strings.TrimSpace(c.Text) == ""
}

// File represents a parsed subtitle document
type File struct {
	Cues     []Cue
	Language language.Tag
	Format   string // currently always SRT
}

// WriteOptions controls serialization of a translated document
type WriteOptions struct {
	// IncludeOriginal emits the original lines beneath the translated
	// line inside the same timing block.
	IncludeOriginal bool
}

// FormatError reports a malformed caption record. It aborts the whole
// run: a document that does not parse has nothing to translate.
type FormatError struct {
	Line int    // 1-based line number in the input
	Msg  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("subtitle format error at line %d: %s", e.Line, e.Msg)
}

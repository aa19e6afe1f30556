package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DefaultReader parses SRT documents
type DefaultReader struct{}

// NewReader creates a new subtitle reader
func NewReader() Reader {
	return &DefaultReader{}
}

// ReadFile reads and parses the SRT file at path
func ReadFile(path string) (*File, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".srt") {
		return nil, fmt.Errorf("only SRT format subtitle files are supported: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subtitle file: %w", err)
	}
	defer f.Close()

	return NewReader().Read(f)
}

// Read parses an SRT document. Every record must carry an integer index
// and a valid timestamp pair with start <= end; anything else is a
// *FormatError. Timing oddities across cues (non-monotonic starts) are
// preserved as-is, never repaired.
func (r *DefaultReader) Read(reader io.Reader) (*File, error) {
	var cues []Cue

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	currentCue := Cue{}
	state := "index" // possible values: "index", "time", "text"
	var textLines []string
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		switch state {
		case "index":
			if line == "" {
				continue
			}
			index, err := strconv.Atoi(line)
			if err != nil {
				return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("expected cue index, got %q", line)}
			}
			if index < 1 {
				return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("cue index must be >= 1, got %d", index)}
			}
			currentCue.Index = index
			state = "time"

		case "time":
			if line == "" {
				return nil, &FormatError{Line: lineNo, Msg: "expected timestamp pair, got blank line"}
			}
			startTime, endTime, err := parseSRTTime(line)
			if err != nil {
				return nil, &FormatError{Line: lineNo, Msg: err.Error()}
			}
			if endTime < startTime {
				return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("cue %d ends before it starts", currentCue.Index)}
			}
			currentCue.StartTime = startTime
			currentCue.EndTime = endTime
			state = "text"
			textLines = []string{}

		case "text":
			if line == "" {
				// cue block ends; a textless cue is kept to preserve the document shape
				currentCue.Text = strings.Join(textLines, "\n")
				cues = append(cues, currentCue)
				currentCue = Cue{}
				state = "index"
				textLines = []string{}
			} else {
				textLines = append(textLines, line)
			}
		}
	}

	// handle last cue block without trailing blank line
	if state == "text" {
		currentCue.Text = strings.Join(textLines, "\n")
		cues = append(cues, currentCue)
	} else if state == "time" {
		return nil, &FormatError{Line: lineNo, Msg: fmt.Sprintf("cue %d is missing its timestamp pair", currentCue.Index)}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subtitle input: %w", err)
	}

	if err := checkIndexOrder(cues); err != nil {
		return nil, err
	}

	return &File{
		Cues:     cues,
		Language: DetectLanguage(cues),
		Format:   "SRT",
	}, nil
}

// checkIndexOrder enforces unique, strictly increasing cue indices.
func checkIndexOrder(cues []Cue) error {
	for i := 1; i < len(cues); i++ {
		if cues[i].Index <= cues[i-1].Index {
			return &FormatError{
				Line: 0,
				Msg:  fmt.Sprintf("cue index %d follows %d, indices must strictly increase", cues[i].Index, cues[i-1].Index),
			}
		}
	}
	return nil
}

var srtTimeRe = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2}),(\d{3}) --> (\d{2}):(\d{2}):(\d{2}),(\d{3})$`)

// parseSRTTime parses an SRT timestamp pair: 00:02:16,612 --> 00:02:19,376
func parseSRTTime(timeString string) (time.Duration, time.Duration, error) {
	matches := srtTimeRe.FindStringSubmatch(timeString)
	if len(matches) != 9 {
		return 0, 0, fmt.Errorf("invalid time format: %s", timeString)
	}

	parseTime := func(hours, minutes, seconds, milliseconds string) time.Duration {
		h, _ := strconv.Atoi(hours)
		m, _ := strconv.Atoi(minutes)
		s, _ := strconv.Atoi(seconds)
		ms, _ := strconv.Atoi(milliseconds)

		return time.Duration(h)*time.Hour +
			time.Duration(m)*time.Minute +
			time.Duration(s)*time.Second +
			time.Duration(ms)*time.Millisecond
	}

	startTime := parseTime(matches[1], matches[2], matches[3], matches[4])
	endTime := parseTime(matches[5], matches[6], matches[7], matches[8])

	return startTime, endTime, nil
}

// DetectLanguage guesses the dominant language of the document text
func DetectLanguage(cues []Cue) language.Tag {
	if len(cues) == 0 {
		return language.Und
	}

	langMap := make(map[string]int)

	for _, cue := range cues {
		if cue.Blank() {
			continue
		}
		lang := whatlanggo.DetectLang(cue.Text).Iso6391()
		langMap[lang]++
	}

	// Get top language
	var topLang string
	var topCount int
	for lang, count := range langMap {
		if count > topCount {
			topLang = lang
			topCount = count
		}
	}

	if topLang == "" {
		return language.Und
	}
	return language.All.Make(topLang)
}

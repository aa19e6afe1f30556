// Package chunker groups subtitle cues into token-bounded batches for
// translation, carrying a trailing excerpt of the previous batch's
// source text forward as context.
package chunker

import (
	"fmt"
	"unicode/utf8"

	"subtrans/internal/subtitle"
)

// TruncationMode selects how to handle a single cue whose text alone
// exceeds the token budget.
type TruncationMode string

const (
	// ModeSlidingWindow keeps only the trailing portion of the
	// oversized cue's text that fits the budget.
	ModeSlidingWindow TruncationMode = "sliding_window"
	// ModeReject excludes the oversized cue from translation and
	// records a recoverable per-cue error.
	ModeReject TruncationMode = "reject"
)

// ParseTruncationMode normalizes a configured mode string.
// "drop_oldest" is accepted as a legacy alias of sliding_window.
func ParseTruncationMode(s string) (TruncationMode, error) {
	switch s {
	case "", "sliding_window", "drop_oldest":
		return ModeSlidingWindow, nil
	case "reject":
		return ModeReject, nil
	default:
		return "", fmt.Errorf("unknown truncation mode: %q", s)
	}
}

// charsPerToken is the estimator divisor: roughly four characters of
// subtitle text per token, language-agnostic.
const charsPerToken = 4

// DefaultContextTokens bounds the trailing context excerpt carried
// into the next batch.
const DefaultContextTokens = 256

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(text) / charsPerToken
}

// Batch is a contiguous run of cues translated together in one call,
// plus the non-translated context carried over from its predecessor.
type Batch struct {
	Cues    []subtitle.Cue
	Context string // trailing source excerpt of the previous batch, may be empty
}

// BudgetExceededError reports a cue whose text alone exceeds the token
// budget under ModeReject. It is recoverable: the orchestrator reports
// it and passes the cue through untranslated.
type BudgetExceededError struct {
	CueIndex int
	Tokens   int
	Budget   int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("cue %d exceeds token budget: %d > %d", e.CueIndex, e.Tokens, e.Budget)
}

// Plan is the chunker output: the ordered batches plus any per-cue
// rejections. Regenerating a Plan from the same document and options
// is deterministic.
type Plan struct {
	Batches  []Batch
	Rejected []*BudgetExceededError
}

// Options configures a chunking pass.
type Options struct {
	TokenBudget   int
	Truncation    TruncationMode
	ContextTokens int // 0 means DefaultContextTokens
}

// Chunk partitions the document's cues into batches. Cues accumulate
// into the current batch until adding the next one would exceed the
// budget. Blank cues are never batched; they pass through the pipeline
// untouched.
func Chunk(doc *subtitle.File, opts Options) (*Plan, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}
	if opts.TokenBudget <= 0 {
		return nil, fmt.Errorf("token budget must be positive, got %d", opts.TokenBudget)
	}
	if opts.Truncation == "" {
		opts.Truncation = ModeSlidingWindow
	}
	contextTokens := opts.ContextTokens
	if contextTokens <= 0 {
		contextTokens = DefaultContextTokens
	}

	plan := &Plan{}
	var current []subtitle.Cue
	currentTokens := 0

	closeBatch := func() {
		if len(current) == 0 {
			return
		}
		// the first batch carries no context
		batch := Batch{Cues: current}
		if n := len(plan.Batches); n > 0 {
			batch.Context = trailingExcerpt(batchSourceText(plan.Batches[n-1]), contextTokens)
		}
		plan.Batches = append(plan.Batches, batch)
		current = nil
		currentTokens = 0
	}

	for _, cue := range doc.Cues {
		if cue.Blank() {
			continue
		}

		tokens := EstimateTokens(cue.Text)
		if tokens > opts.TokenBudget {
			switch opts.Truncation {
			case ModeReject:
				plan.Rejected = append(plan.Rejected, &BudgetExceededError{
					CueIndex: cue.Index,
					Tokens:   tokens,
					Budget:   opts.TokenBudget,
				})
				continue
			case ModeSlidingWindow:
				cue.Text = trailingExcerpt(cue.Text, opts.TokenBudget)
				tokens = EstimateTokens(cue.Text)
			}
		}

		if len(current) > 0 && currentTokens+tokens > opts.TokenBudget {
			closeBatch()
		}
		current = append(current, cue)
		currentTokens += tokens
	}
	closeBatch()

	return plan, nil
}

// batchSourceText joins the source text of a batch's cues.
func batchSourceText(b Batch) string {
	var out string
	for i, cue := range b.Cues {
		if i > 0 {
			out += "\n"
		}
		out += cue.Text
	}
	return out
}

// trailingExcerpt keeps the trailing portion of text that fits the
// token allowance. The cut is measured in bytes, the same unit the
// estimator counts, so EstimateTokens of the result never exceeds the
// allowance; it only moves forward to the next rune boundary.
func trailingExcerpt(text string, tokens int) string {
	byteBudget := tokens * charsPerToken
	if byteBudget <= 0 || len(text) <= byteBudget {
		return text
	}

	cut := len(text) - byteBudget
	for cut < len(text) && !utf8.RuneStart(text[cut]) {
		cut++
	}
	return text[cut:]
}

// Package translator drives the end-to-end translation run: chunking,
// cache lookups, live translation calls, RTL post-processing and the
// aggregate report. Batches are processed strictly in document order
// because each batch carries context from its predecessor.
package translator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"subtrans/internal/cache"
	"subtrans/internal/chunker"
	"subtrans/internal/config"
	"subtrans/internal/llm"
	"subtrans/internal/subtitle"
	"subtrans/pkg/log"
)

// modelTokenReserve is held back from the model's max tokens when
// capping the chunking budget, leaving room for prompts and reply.
const modelTokenReserve = 1000

// Client is the translation transport consumed by the orchestrator.
type Client interface {
	Translate(ctx context.Context, req llm.TranslateRequest) (string, error)
}

// Orchestrator owns one or more translation runs over a shared cache
// store and client. Concurrent runs are safe; in-flight identical
// batch calls are collapsed through singleflight.
type Orchestrator struct {
	cfg    config.Config
	client Client
	store  cache.Store
	group  singleflight.Group

	// sleep is swapped out in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator around an immutable config snapshot.
func New(cfg config.Config, client Client, store cache.Store) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		client: client,
		store:  store,
		sleep:  sleepContext,
	}
}

// Report aggregates the outcome of one run.
type Report struct {
	CuesTotal int // cues in the document
	FromCache int // cues translated from the fingerprint cache
	Live      int // cues translated by live API calls
	Blank     int // whitespace-only cues passed through untouched
	Rejected  int // cues rejected as over-budget (truncation mode reject)
	Failed    int // cues of batches that failed after retry exhaustion
	Notes     []string
}

// Passthrough counts the cues whose original text was retained.
func (r *Report) Passthrough() int {
	return r.Blank + r.Rejected + r.Failed
}

func (r *Report) note(format string, args ...interface{}) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// Run translates the document in place: cue text, order and timing are
// untouched, only TranslatedText is filled in. Per-batch failures
// degrade those cues to passthrough; only credential failures and
// cancellation abort the run. The returned report is valid even when
// err is non-nil.
func (o *Orchestrator) Run(ctx context.Context, doc *subtitle.File) (*Report, error) {
	report := &Report{CuesTotal: len(doc.Cues)}

	sourceLang := o.resolveSourceLang(doc)
	targetLang := o.cfg.TargetLanguage

	truncation, err := chunker.ParseTruncationMode(o.cfg.TruncationMode)
	if err != nil {
		return report, err
	}
	plan, err := chunker.Chunk(doc, chunker.Options{
		TokenBudget: o.effectiveBudget(),
		Truncation:  truncation,
	})
	if err != nil {
		return report, fmt.Errorf("chunking failed: %w", err)
	}

	for _, cue := range doc.Cues {
		if cue.Blank() {
			report.Blank++
		}
	}
	for _, rej := range plan.Rejected {
		report.Rejected++
		report.note("cue %d: %v", rej.CueIndex, rej)
	}

	cueByIndex := make(map[int]*subtitle.Cue, len(doc.Cues))
	for i := range doc.Cues {
		cueByIndex[doc.Cues[i].Index] = &doc.Cues[i]
	}

	liveCallMade := false
	for batchNo, batch := range plan.Batches {
		// cooperative cancellation checkpoint between batches
		if err := ctx.Err(); err != nil {
			return report, err
		}

		translations, outcome, err := o.translateBatch(ctx, batch, sourceLang, targetLang, liveCallMade)
		if err != nil {
			if llm.IsAuthError(err) || ctx.Err() != nil {
				// credential failures and cancellation abort the run
				report.Failed += len(batch.Cues)
				return report, err
			}
			report.Failed += len(batch.Cues)
			report.note("batch %d (%d cues): %v", batchNo+1, len(batch.Cues), err)
			log.Error("batch %d failed, passing %d cues through untranslated: %v", batchNo+1, len(batch.Cues), err)
			continue
		}

		if outcome == outcomeLive {
			liveCallMade = true
			report.Live += len(batch.Cues)
		} else {
			report.FromCache += len(batch.Cues)
		}

		for idx, text := range translations {
			if cue, ok := cueByIndex[idx]; ok {
				cue.TranslatedText = text
			}
		}
	}

	if IsRTLTarget(targetLang) {
		for i := range doc.Cues {
			if doc.Cues[i].TranslatedText != "" {
				doc.Cues[i].TranslatedText = applyRTLMark(doc.Cues[i].TranslatedText)
			}
		}
	}

	log.Info("run finished: %d cues, %d cached, %d live, %d passthrough",
		report.CuesTotal, report.FromCache, report.Live, report.Passthrough())
	return report, nil
}

type batchOutcome int

const (
	outcomeCached batchOutcome = iota
	outcomeLive
)

// translateBatch resolves one batch: full cache hit, or one live call
// whose per-cue results are stored back. delayBefore marks that a
// previous live call succeeded, so the inter-request delay applies
// before the next one.
func (o *Orchestrator) translateBatch(
	ctx context.Context,
	batch chunker.Batch,
	sourceLang, targetLang string,
	delayBefore bool,
) (map[int]string, batchOutcome, error) {
	// per-cue lookups so recurring lines dedupe across the document
	cached := make(map[int]string, len(batch.Cues))
	allHit := true
	for _, cue := range batch.Cues {
		fp := cache.Fingerprint(cue.Text, sourceLang, targetLang, o.cfg.SelectedModel)
		text, ok, err := o.store.Lookup(ctx, fp)
		if err != nil {
			log.Warn("cache lookup failed, treating as miss: %v", err)
			ok = false
		}
		if !ok {
			allHit = false
			break
		}
		cached[cue.Index] = text
	}
	if allHit {
		return cached, outcomeCached, nil
	}

	// rate-limit delay between successive successful live calls
	if delayBefore && o.cfg.DelayMs > 0 {
		if err := o.sleep(ctx, time.Duration(o.cfg.DelayMs)*time.Millisecond); err != nil {
			return nil, outcomeLive, err
		}
	}

	payload, err := buildBatchPayload(batch.Cues)
	if err != nil {
		return nil, outcomeLive, err
	}

	// collapse identical concurrent batch calls across runs. A
	// duplicate caller shares the leader's result and error, so a
	// cancellation of the leader's context also surfaces in runs
	// whose own context is still live; those cues degrade to
	// passthrough like any other batch failure.
	flightKey := cache.Fingerprint(payload+"\x00"+batch.Context, sourceLang, targetLang, o.cfg.SelectedModel)
	raw, err, _ := o.group.Do(flightKey, func() (interface{}, error) {
		return o.client.Translate(ctx, llm.TranslateRequest{
			BatchText:  payload,
			Context:    batch.Context,
			SourceLang: sourceLang,
			TargetLang: targetLang,
		})
	})
	if err != nil {
		return nil, outcomeLive, err
	}

	translations, err := parseBatchOutput(raw.(string), batch.Cues)
	if err != nil {
		return nil, outcomeLive, fmt.Errorf("unusable translation response: %w", err)
	}

	for _, cue := range batch.Cues {
		fp := cache.Fingerprint(cue.Text, sourceLang, targetLang, o.cfg.SelectedModel)
		if perr := o.store.Put(ctx, fp, translations[cue.Index]); perr != nil {
			log.Warn("cache store failed for cue %d: %v", cue.Index, perr)
		}
	}

	return translations, outcomeLive, nil
}

// resolveSourceLang prefers the configured source language and falls
// back to the language detected at parse time. "auto" is the neutral
// value used in fingerprints when nothing is known.
func (o *Orchestrator) resolveSourceLang(doc *subtitle.File) string {
	if o.cfg.SourceLanguage != "" {
		return o.cfg.SourceLanguage
	}
	if doc.Language != language.Und {
		return doc.Language.String()
	}
	return "auto"
}

// effectiveBudget caps the configured context budget by what the
// selected model can actually take.
func (o *Orchestrator) effectiveBudget() int {
	budget := o.cfg.ContextBudget
	if limit := o.cfg.MaxModelTokens() - modelTokenReserve; limit > 0 && limit < budget {
		budget = limit
	}
	if budget <= 0 {
		budget = 1
	}
	return budget
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtrans/internal/cache"
	"subtrans/internal/config"
	"subtrans/internal/llm"
	"subtrans/internal/subtitle"
)

// fakeClient translates each cue by prefixing its text, echoing the
// indexed JSON protocol, and records every call.
type fakeClient struct {
	calls    int32
	failWith error
	failN    int32 // fail this many leading calls, 0 means per failWith forever
	prefix   string
}

func (f *fakeClient) Translate(ctx context.Context, req llm.TranslateRequest) (string, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.failWith != nil && (f.failN == 0 || n <= f.failN) {
		return "", f.failWith
	}

	var payload struct {
		Lines []struct {
			Index int    `json:"index"`
			Text  string `json:"text"`
		} `json:"lines"`
	}
	if err := json.Unmarshal([]byte(req.BatchText), &payload); err != nil {
		return "", fmt.Errorf("bad payload: %w", err)
	}

	prefix := f.prefix
	if prefix == "" {
		prefix = "T:"
	}
	out := make([]map[string]interface{}, 0, len(payload.Lines))
	for _, line := range payload.Lines {
		out = append(out, map[string]interface{}{"index": line.Index, "text": prefix + line.Text})
	}
	encoded, _ := json.Marshal(out)
	return string(encoded), nil
}

func testConfig() config.Config {
	cfg := config.New()
	cfg.SourceLanguage = "en"
	cfg.TargetLanguage = "fr"
	cfg.ContextBudget = 1000
	return cfg
}

func testDoc(texts ...string) *subtitle.File {
	doc := &subtitle.File{Format: "SRT"}
	for i, text := range texts {
		doc.Cues = append(doc.Cues, subtitle.Cue{
			Index:     i + 1,
			StartTime: time.Duration(i) * time.Second,
			EndTime:   time.Duration(i)*time.Second + 900*time.Millisecond,
			Text:      text,
		})
	}
	return doc
}

func sqliteStore(t *testing.T) cache.Store {
	t.Helper()
	store, err := cache.NewSQLiteStore(t.TempDir() + "/cache.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunTranslatesAllCues(t *testing.T) {
	client := &fakeClient{}
	doc := testDoc("Hello", "World", "Goodbye")

	rep, err := New(testConfig(), client, cache.Noop()).Run(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, 3, rep.CuesTotal)
	assert.Equal(t, 3, rep.Live)
	assert.Equal(t, 0, rep.FromCache)
	assert.Equal(t, 0, rep.Passthrough())

	assert.Equal(t, "T:Hello", doc.Cues[0].TranslatedText)
	assert.Equal(t, "T:World", doc.Cues[1].TranslatedText)
	assert.Equal(t, "T:Goodbye", doc.Cues[2].TranslatedText)
}

func TestRunPreservesOrderAndTiming(t *testing.T) {
	client := &fakeClient{}
	doc := testDoc("One", "Two", "Three", "Four")
	before := make([]subtitle.Cue, len(doc.Cues))
	copy(before, doc.Cues)

	_, err := New(testConfig(), client, cache.Noop()).Run(context.Background(), doc)
	require.NoError(t, err)

	for i := range before {
		assert.Equal(t, before[i].Index, doc.Cues[i].Index)
		assert.Equal(t, before[i].StartTime, doc.Cues[i].StartTime)
		assert.Equal(t, before[i].EndTime, doc.Cues[i].EndTime)
		assert.Equal(t, before[i].Text, doc.Cues[i].Text)
	}
}

func TestRunCacheIdempotence(t *testing.T) {
	store := sqliteStore(t)
	cfg := testConfig()

	first := &fakeClient{}
	doc1 := testDoc("Hello", "World")
	rep1, err := New(cfg, first, store).Run(context.Background(), doc1)
	require.NoError(t, err)
	assert.Equal(t, 2, rep1.Live)
	assert.Equal(t, int32(1), atomic.LoadInt32(&first.calls))

	// second run over the same content issues no live calls
	second := &fakeClient{failWith: errors.New("must not be called")}
	doc2 := testDoc("Hello", "World")
	rep2, err := New(cfg, second, store).Run(context.Background(), doc2)
	require.NoError(t, err)
	assert.Equal(t, 2, rep2.FromCache)
	assert.Equal(t, 0, rep2.Live)
	assert.Equal(t, int32(0), atomic.LoadInt32(&second.calls))

	assert.Equal(t, doc1.Cues[0].TranslatedText, doc2.Cues[0].TranslatedText)
	assert.Equal(t, doc1.Cues[1].TranslatedText, doc2.Cues[1].TranslatedText)
}

func TestRunCacheModeOffAlwaysLive(t *testing.T) {
	cfg := testConfig()
	cfg.CacheMode = config.CacheModeOff

	client := &fakeClient{}
	store := cache.Open("", cfg.CacheMode) // off mode never touches disk
	_, err := New(cfg, client, store).Run(context.Background(), testDoc("Hello"))
	require.NoError(t, err)
	_, err = New(cfg, client, store).Run(context.Background(), testDoc("Hello"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&client.calls))
}

func TestRunBatchFailureDegradesToPassthrough(t *testing.T) {
	client := &fakeClient{failWith: fmt.Errorf("%w: connection refused", llm.ErrNetwork)}
	doc := testDoc("Hello", "World")

	rep, err := New(testConfig(), client, cache.Noop()).Run(context.Background(), doc)
	require.NoError(t, err, "transient batch failure must not fail the run")

	assert.Equal(t, 2, rep.Failed)
	assert.Equal(t, 2, rep.Passthrough())
	assert.NotEmpty(t, rep.Notes)
	assert.Empty(t, doc.Cues[0].TranslatedText)
	assert.Equal(t, "Hello", doc.Cues[0].Text)
}

func TestRunPartialFailureKeepsOtherBatches(t *testing.T) {
	// budget forces one batch per cue; first live call fails, rest succeed
	cfg := testConfig()
	cfg.ContextBudget = 10

	long := strings.Repeat("abcd ", 7) // ~35 chars, 8 tokens
	client := &fakeClient{failWith: fmt.Errorf("%w: flaky", llm.ErrNetwork), failN: 1}
	doc := testDoc(long, long+"x", long+"y")

	rep, err := New(cfg, client, cache.Noop()).Run(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 2, rep.Live)
	assert.Empty(t, doc.Cues[0].TranslatedText)
	assert.NotEmpty(t, doc.Cues[1].TranslatedText)
	assert.NotEmpty(t, doc.Cues[2].TranslatedText)
}

func TestRunAuthErrorAborts(t *testing.T) {
	client := &fakeClient{failWith: fmt.Errorf("%w: bad key", llm.ErrAuth)}
	doc := testDoc("Hello")

	_, err := New(testConfig(), client, cache.Noop()).Run(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, llm.IsAuthError(err))
}

func TestRunBlankCuesPassThrough(t *testing.T) {
	client := &fakeClient{}
	doc := testDoc("Hello", "   ", "", "World")

	rep, err := New(testConfig(), client, cache.Noop()).Run(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Blank)
	assert.Equal(t, 2, rep.Live)
	assert.Empty(t, doc.Cues[1].TranslatedText)
	assert.Empty(t, doc.Cues[2].TranslatedText)
}

func TestRunRTLScenario(t *testing.T) {
	// three cues under budget, target ar: every translated line gets
	// the RTL mark, timestamps unchanged
	cfg := testConfig()
	cfg.TargetLanguage = "ar"

	client := &fakeClient{prefix: "ترجمة:"}
	doc := testDoc("First", "Second", "Third")

	rep, err := New(cfg, client, cache.Noop()).Run(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Live)

	for i, cue := range doc.Cues {
		assert.True(t, strings.HasPrefix(cue.TranslatedText, RTLMark), "cue %d missing RTL mark", i+1)
		assert.Equal(t, time.Duration(i)*time.Second, cue.StartTime)
	}
}

func TestRunNonRTLTargetUnmodified(t *testing.T) {
	client := &fakeClient{}
	doc := testDoc("Hello")

	_, err := New(testConfig(), client, cache.Noop()).Run(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, strings.Contains(doc.Cues[0].TranslatedText, RTLMark))
}

func TestRunRejectedOversizedCue(t *testing.T) {
	cfg := testConfig()
	cfg.ContextBudget = 10
	cfg.TruncationMode = "reject"

	long := strings.Repeat("0123456789", 10) // 25 tokens
	client := &fakeClient{}
	doc := testDoc("short", long)

	rep, err := New(cfg, client, cache.Noop()).Run(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Rejected)
	assert.Equal(t, 1, rep.Live)
	assert.Empty(t, doc.Cues[1].TranslatedText, "rejected cue passes through untranslated")
	assert.NotEmpty(t, rep.Notes)
}

func TestRunSlidingWindowOversizedCue(t *testing.T) {
	cfg := testConfig()
	cfg.ContextBudget = 10
	cfg.TruncationMode = "sliding_window"

	long := strings.Repeat("0123456789", 10)
	client := &fakeClient{}
	doc := testDoc(long)

	rep, err := New(cfg, client, cache.Noop()).Run(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Live)

	// translated from the truncated tail only
	got := strings.TrimPrefix(doc.Cues[0].TranslatedText, "T:")
	assert.Len(t, got, 40)
	assert.True(t, strings.HasSuffix(long, got))
}

func TestRunInterRequestDelay(t *testing.T) {
	cfg := testConfig()
	cfg.ContextBudget = 10 // one cue per batch
	cfg.DelayMs = 1234

	var slept []time.Duration
	long := strings.Repeat("abcd ", 7)
	client := &fakeClient{}
	o := New(cfg, client, cache.Noop())
	o.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	_, err := o.Run(context.Background(), testDoc(long, long+"x", long+"y"))
	require.NoError(t, err)

	// delay applies between live calls, not before the first
	require.Len(t, slept, 2)
	assert.Equal(t, 1234*time.Millisecond, slept[0])
}

func TestRunCancellationBetweenBatches(t *testing.T) {
	cfg := testConfig()
	cfg.ContextBudget = 10

	ctx, cancel := context.WithCancel(context.Background())
	long := strings.Repeat("abcd ", 7)
	client := &fakeClient{}
	o := New(cfg, client, cache.Noop())
	o.sleep = func(context.Context, time.Duration) error { return nil }

	// cancel after the first live call completes
	cancelling := &cancellingClient{inner: client, cancel: cancel}
	o.client = cancelling

	rep, err := o.Run(ctx, testDoc(long, long+"x", long+"y"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, rep.Live)
	assert.Equal(t, int32(1), atomic.LoadInt32(&client.calls))
}

type cancellingClient struct {
	inner  Client
	cancel context.CancelFunc
}

func (c *cancellingClient) Translate(ctx context.Context, req llm.TranslateRequest) (string, error) {
	out, err := c.inner.Translate(ctx, req)
	c.cancel()
	return out, err
}

// blockingClient parks the first call until released so a concurrent
// duplicate run can join the in-flight request.
type blockingClient struct {
	inner   *fakeClient
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingClient) Translate(ctx context.Context, req llm.TranslateRequest) (string, error) {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return b.inner.Translate(ctx, req)
}

func TestRunConcurrentIdenticalRunsShareOneLiveCall(t *testing.T) {
	fake := &fakeClient{}
	client := &blockingClient{
		inner:   fake,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	o := New(testConfig(), client, cache.Noop())

	docA := testDoc("Hello", "World")
	docB := testDoc("Hello", "World")

	type result struct {
		rep *Report
		err error
	}
	results := make(chan result, 2)
	run := func(doc *subtitle.File) {
		rep, err := o.Run(context.Background(), doc)
		results <- result{rep, err}
	}

	go run(docA)
	<-client.entered
	go run(docB)
	// give the duplicate time to reach the in-flight call,
	// then let the parked leader finish
	time.Sleep(50 * time.Millisecond)
	close(client.release)

	for i := 0; i < 2; i++ {
		res := <-results
		require.NoError(t, res.err)
		assert.Equal(t, 2, res.rep.Live)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.calls), "identical concurrent batches collapse to one call")
	assert.Equal(t, "T:Hello", docA.Cues[0].TranslatedText)
	assert.Equal(t, docA.Cues[0].TranslatedText, docB.Cues[0].TranslatedText)
	assert.Equal(t, docA.Cues[1].TranslatedText, docB.Cues[1].TranslatedText)
}

func TestRunRepeatedLinesDedupeThroughCache(t *testing.T) {
	store := sqliteStore(t)
	cfg := testConfig()

	client := &fakeClient{}
	_, err := New(cfg, client, store).Run(context.Background(), testDoc("- credits -"))
	require.NoError(t, err)

	// a later document containing only the same line is served from cache
	silent := &fakeClient{failWith: errors.New("must not be called")}
	rep, err := New(cfg, silent, store).Run(context.Background(), testDoc("- credits -"))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.FromCache)
}

func TestIsRTLTarget(t *testing.T) {
	assert.True(t, IsRTLTarget("ar"))
	assert.True(t, IsRTLTarget("fa"))
	assert.True(t, IsRTLTarget("he"))
	assert.True(t, IsRTLTarget("ar-EG"))
	assert.False(t, IsRTLTarget("en"))
	assert.False(t, IsRTLTarget("ja"))
	assert.False(t, IsRTLTarget(""))
}

func TestApplyRTLMark(t *testing.T) {
	assert.Equal(t, RTLMark+"مرحبا", applyRTLMark("مرحبا"))
	assert.Equal(t, RTLMark+"a\n\n"+RTLMark+"b", applyRTLMark("a\n\nb"))
	// already marked lines stay single-marked
	assert.Equal(t, RTLMark+"x", applyRTLMark(RTLMark+"x"))
}

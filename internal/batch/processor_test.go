package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spacesedan/feedbackflow/internal/analysis"
	"github.com/spacesedan/feedbackflow/internal/cache"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	mu      sync.Mutex
	calls   int
	sent    []string
	analyze func(ctx context.Context, call int, comments []models.Comment) ([]models.AnalysisResult, error)
}

func (f *fakeAnalyzer) Name() string { return "fake" }

func (f *fakeAnalyzer) AnalyzeBatch(ctx context.Context, comments []models.Comment) ([]models.AnalysisResult, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	for _, c := range comments {
		f.sent = append(f.sent, c.ID)
	}
	f.mu.Unlock()

	if f.analyze != nil {
		return f.analyze(ctx, call, comments)
	}
	return positive(comments), nil
}

func (f *fakeAnalyzer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func positive(comments []models.Comment) []models.AnalysisResult {
	out := make([]models.AnalysisResult, 0, len(comments))
	for _, c := range comments {
		out = append(out, models.AnalysisResult{
			CommentID:  c.ID,
			Status:     models.StatusAnalyzed,
			Sentiment:  models.SentimentPositive,
			Score:      0.5,
			Confidence: 0.9,
		})
	}
	return out
}

func makeComments(n int) []models.Comment {
	out := make([]models.Comment, n)
	for i := range out {
		out[i] = models.Comment{ID: fmt.Sprintf("c%d", i), Text: fmt.Sprintf("comentario número %d", i), Valid: true}
	}
	return out
}

func fastOptions() Options {
	return Options{
		BatchSize:      100,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func containsID(comments []models.Comment, id string) bool {
	for _, c := range comments {
		if c.ID == id {
			return true
		}
	}
	return false
}

func TestProcessFailedBatchKeepsOthers(t *testing.T) {
	fake := &fakeAnalyzer{
		analyze: func(_ context.Context, _ int, comments []models.Comment) ([]models.AnalysisResult, error) {
			if containsID(comments, "c100") {
				return nil, errors.New("upstream exploded")
			}
			return positive(comments), nil
		},
	}

	run, err := NewProcessor(fake, fastOptions()).Process(context.Background(), makeComments(250))
	require.NoError(t, err)

	require.Len(t, run.Results, 250)
	require.Len(t, run.Ledger, 3)
	assert.Equal(t, []int{100, 100, 50}, []int{run.Ledger[0].Size, run.Ledger[1].Size, run.Ledger[2].Size})
	assert.Equal(t, models.BatchSucceeded, run.Ledger[0].Status)
	assert.Equal(t, models.BatchFailed, run.Ledger[1].Status)
	assert.Equal(t, 3, run.Ledger[1].Attempts)
	assert.Contains(t, run.Ledger[1].Error, "upstream exploded")
	assert.Equal(t, models.BatchSucceeded, run.Ledger[2].Status)

	failed := 0
	for i, r := range run.Results {
		assert.Equal(t, fmt.Sprintf("c%d", i), r.CommentID)
		assert.Equal(t, i, r.Index)
		if !r.Analyzed() {
			failed++
			assert.True(t, i >= 100 && i < 200, "slot %d should be analyzed", i)
		}
	}
	assert.Equal(t, 100, failed)
	assert.Len(t, run.FailedBatches(), 1)
}

func TestProcessRetriesUntilSuccess(t *testing.T) {
	fake := &fakeAnalyzer{
		analyze: func(_ context.Context, call int, comments []models.Comment) ([]models.AnalysisResult, error) {
			if call < 3 {
				return nil, fmt.Errorf("%w: 503", models.ErrAPI)
			}
			return positive(comments), nil
		},
	}

	run, err := NewProcessor(fake, fastOptions()).Process(context.Background(), makeComments(10))
	require.NoError(t, err)
	assert.Equal(t, models.BatchSucceeded, run.Ledger[0].Status)
	assert.Equal(t, 3, run.Ledger[0].Attempts)
	for _, r := range run.Results {
		assert.True(t, r.Analyzed())
		assert.Equal(t, "fake", r.Source)
	}
}

func TestProcessPermanentErrorIsNotRetried(t *testing.T) {
	fake := &fakeAnalyzer{
		analyze: func(context.Context, int, []models.Comment) ([]models.AnalysisResult, error) {
			return nil, analysis.Permanent(fmt.Errorf("%w: 401", models.ErrAPI))
		},
	}

	run, err := NewProcessor(fake, fastOptions()).Process(context.Background(), makeComments(5))
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Calls())
	assert.Equal(t, models.BatchFailed, run.Ledger[0].Status)
	assert.Equal(t, 1, run.Ledger[0].Attempts)
}

func TestProcessPartialResponses(t *testing.T) {
	fake := &fakeAnalyzer{
		analyze: func(_ context.Context, call int, comments []models.Comment) ([]models.AnalysisResult, error) {
			var keep []models.Comment
			for _, c := range comments {
				// c1 shows up on the second attempt, c3 never does
				if c.ID == "c3" || (c.ID == "c1" && call == 1) {
					continue
				}
				keep = append(keep, c)
			}
			return positive(keep), nil
		},
	}

	run, err := NewProcessor(fake, fastOptions()).Process(context.Background(), makeComments(5))
	require.NoError(t, err)

	outcome := run.Ledger[0]
	assert.Equal(t, models.BatchPartial, outcome.Status)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Contains(t, outcome.Error, "1 of 5 comments missing")

	for i, r := range run.Results {
		if i == 3 {
			assert.False(t, r.Analyzed())
			assert.Equal(t, "c3", r.CommentID)
			continue
		}
		assert.True(t, r.Analyzed(), "slot %d", i)
	}

	// only the missing comments are sent again
	assert.Equal(t, []string{"c0", "c1", "c2", "c3", "c4", "c1", "c3", "c3"}, fake.sent)
}

func TestProcessCancellationKeepsCompletedBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := &fakeAnalyzer{
		analyze: func(ctx context.Context, call int, comments []models.Comment) ([]models.AnalysisResult, error) {
			if call == 2 {
				cancel()
				return nil, ctx.Err()
			}
			return positive(comments), nil
		},
	}

	opts := fastOptions()
	opts.BatchSize = 10
	run, err := NewProcessor(fake, opts).Process(ctx, makeComments(30))
	require.ErrorIs(t, err, context.Canceled)

	require.Len(t, run.Results, 30)
	require.Len(t, run.Ledger, 3)
	assert.Equal(t, 2, fake.Calls())
	assert.Equal(t, models.BatchSucceeded, run.Ledger[0].Status)
	assert.Equal(t, models.BatchFailed, run.Ledger[1].Status)
	assert.Equal(t, models.BatchFailed, run.Ledger[2].Status)

	for i, r := range run.Results {
		assert.Equal(t, i < 10, r.Analyzed(), "slot %d", i)
		assert.Equal(t, fmt.Sprintf("c%d", i), r.CommentID)
	}
}

func TestProcessConcurrentBatchesKeepOrder(t *testing.T) {
	var inFlight, peak atomic.Int32
	fake := &fakeAnalyzer{
		analyze: func(_ context.Context, _ int, comments []models.Comment) ([]models.AnalysisResult, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return positive(comments), nil
		},
	}

	opts := fastOptions()
	opts.BatchSize = 7
	opts.Concurrency = 3
	run, err := NewProcessor(fake, opts).Process(context.Background(), makeComments(100))
	require.NoError(t, err)

	assert.LessOrEqual(t, peak.Load(), int32(3))
	require.Len(t, run.Ledger, 15)
	for i, o := range run.Ledger {
		assert.Equal(t, i, o.Index)
		assert.Equal(t, i*7, o.Start)
	}
	assert.Equal(t, 2, run.Ledger[14].Size)
	for i, r := range run.Results {
		assert.Equal(t, fmt.Sprintf("c%d", i), r.CommentID)
		assert.True(t, r.Analyzed())
	}
}

func TestProcessUsesCache(t *testing.T) {
	ctx := context.Background()
	comments := makeComments(4)

	memory := cache.NewMemory(0)
	require.NoError(t, memory.SetMany(ctx, map[string]models.AnalysisResult{
		cache.Key("fake", comments[2].Text): {Status: models.StatusAnalyzed, Sentiment: models.SentimentNegative, Confidence: 0.7},
	}))

	fake := &fakeAnalyzer{}
	opts := fastOptions()
	opts.Cache = memory
	run, err := NewProcessor(fake, opts).Process(ctx, comments)
	require.NoError(t, err)

	assert.Equal(t, []string{"c0", "c1", "c3"}, fake.sent)
	assert.Equal(t, 1, run.CacheHits)
	assert.Equal(t, CACHE_SOURCE, run.Results[2].Source)
	assert.Equal(t, models.SentimentNegative, run.Results[2].Sentiment)
	assert.Equal(t, "c2", run.Results[2].CommentID)
	assert.Equal(t, 2, run.Results[2].Index)
	assert.Equal(t, 4, memory.Len())

	// a second run is answered entirely from the cache
	again := &fakeAnalyzer{}
	run, err = NewProcessor(again, opts).Process(ctx, comments)
	require.NoError(t, err)
	assert.Zero(t, again.Calls())
	assert.Equal(t, 4, run.CacheHits)
	assert.Equal(t, models.BatchSucceeded, run.Ledger[0].Status)
}

func TestProcessProgressEvents(t *testing.T) {
	var events []models.ProgressEvent
	opts := fastOptions()
	opts.BatchSize = 4
	opts.OnProgress = func(e models.ProgressEvent) { events = append(events, e) }

	p := NewProcessor(&fakeAnalyzer{}, opts)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	run, err := p.Process(context.Background(), makeComments(10))
	require.NoError(t, err)

	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, run.ID, e.RunID)
		assert.Equal(t, i+1, e.BatchesCompleted)
		assert.Equal(t, 3, e.BatchesTotal)
		assert.Equal(t, 10, e.RecordsTotal)
		assert.Greater(t, e.Elapsed, time.Duration(0))
	}
	assert.Equal(t, 4, events[0].RecordsCompleted)
	assert.Equal(t, 10, events[2].RecordsCompleted)
	assert.Equal(t, events[0].Elapsed*2, events[0].ETA)
	assert.Zero(t, events[2].ETA)
}

func TestProcessCircuitBreakerCountsFailedBatches(t *testing.T) {
	fake := &fakeAnalyzer{
		analyze: func(context.Context, int, []models.Comment) ([]models.AnalysisResult, error) {
			return nil, errors.New("connection reset")
		},
	}

	opts := fastOptions()
	opts.BatchSize = 2
	opts.MaxRetries = 1
	opts.BreakerThreshold = 2
	opts.BreakerTimeout = time.Minute
	run, err := NewProcessor(fake, opts).Process(context.Background(), makeComments(8))
	require.NoError(t, err)

	// two batches of two attempts each open the breaker
	assert.Equal(t, 4, fake.Calls())
	require.Len(t, run.Ledger, 4)
	for _, o := range run.Ledger {
		assert.Equal(t, models.BatchFailed, o.Status)
	}
	assert.Equal(t, 2, run.Ledger[0].Attempts)
	assert.Equal(t, 2, run.Ledger[1].Attempts)
	for _, o := range run.Ledger[2:] {
		assert.Contains(t, o.Error, "analyzer unavailable")
		assert.Zero(t, o.Attempts)
	}
}

func TestProcessOneBatchRetryingPastThresholdKeepsOthers(t *testing.T) {
	fake := &fakeAnalyzer{
		analyze: func(_ context.Context, _ int, comments []models.Comment) ([]models.AnalysisResult, error) {
			if containsID(comments, "c100") {
				return nil, errors.New("upstream exploded")
			}
			return positive(comments), nil
		},
	}

	opts := fastOptions()
	opts.MaxRetries = 4
	opts.BreakerThreshold = 5
	run, err := NewProcessor(fake, opts).Process(context.Background(), makeComments(250))
	require.NoError(t, err)

	require.Len(t, run.Ledger, 3)
	assert.Equal(t, models.BatchSucceeded, run.Ledger[0].Status)
	assert.Equal(t, models.BatchFailed, run.Ledger[1].Status)
	assert.Equal(t, 5, run.Ledger[1].Attempts)
	assert.Equal(t, models.BatchSucceeded, run.Ledger[2].Status)
	assert.Equal(t, 1, run.Ledger[2].Attempts)

	analyzed := 0
	for _, r := range run.Results {
		if r.Analyzed() {
			analyzed++
		}
	}
	assert.Equal(t, 150, analyzed)
}

func TestGuardWaitsWhileHalfOpenIsBusy(t *testing.T) {
	opts := fastOptions()
	opts.BreakerThreshold = 1
	opts.BreakerTimeout = 10 * time.Millisecond
	p := NewProcessor(&fakeAnalyzer{}, opts)
	ctx := context.Background()

	err := p.guard(ctx, func() error { return errors.New("down") })
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "analyzer unavailable")

	err = p.guard(ctx, func() error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyzer unavailable")

	time.Sleep(20 * time.Millisecond)

	started := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- p.guard(ctx, func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	var ran atomic.Bool
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- p.guard(ctx, func() error {
			ran.Store(true)
			return nil
		})
	}()

	time.Sleep(10 * time.Millisecond)
	assert.False(t, ran.Load(), "second batch should wait for the half-open slot")
	close(release)

	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)
	assert.True(t, ran.Load())
}

func TestProcessEmptyInput(t *testing.T) {
	fake := &fakeAnalyzer{}
	run, err := NewProcessor(fake, Options{}).Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, run.Results)
	assert.Empty(t, run.Ledger)
	assert.Zero(t, fake.Calls())
	assert.NotEmpty(t, run.ID)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DEFAULT_BATCH_SIZE, o.BatchSize)
	assert.Equal(t, DEFAULT_MAX_RETRIES, o.MaxRetries)
	assert.Equal(t, 0, Options{MaxRetries: -1}.withDefaults().MaxRetries)
	assert.Equal(t, 1, o.Concurrency)
	assert.Equal(t, DEFAULT_INITIAL_BACKOFF, o.InitialBackoff)
	assert.Equal(t, DEFAULT_MAX_BACKOFF, o.MaxBackoff)
	assert.EqualValues(t, DEFAULT_BREAKER_THRESHOLD, o.BreakerThreshold)
}

package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/spacesedan/feedbackflow/internal/analysis"
	"github.com/spacesedan/feedbackflow/internal/cache"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/monitoring"
	"github.com/spacesedan/feedbackflow/internal/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DEFAULT_BATCH_SIZE        = 100
	DEFAULT_MAX_RETRIES       = 3
	DEFAULT_INITIAL_BACKOFF   = time.Second
	DEFAULT_MAX_BACKOFF       = 32 * time.Second
	DEFAULT_BREAKER_THRESHOLD = 5
	DEFAULT_BREAKER_TIMEOUT   = 30 * time.Second

	CACHE_SOURCE = "cache"
)

type Options struct {
	BatchSize int
	// MaxRetries is the number of attempts after the first one. Zero means
	// DEFAULT_MAX_RETRIES; use a negative value to disable retries.
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	Concurrency       int
	RequestsPerMinute int
	BreakerThreshold  uint32
	BreakerTimeout    time.Duration
	Cache             cache.Cache
	OnProgress        func(models.ProgressEvent)
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DEFAULT_BATCH_SIZE
	}
	switch {
	case o.MaxRetries == 0:
		o.MaxRetries = DEFAULT_MAX_RETRIES
	case o.MaxRetries < 0:
		o.MaxRetries = 0
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = DEFAULT_INITIAL_BACKOFF
	}
	if o.MaxBackoff < o.InitialBackoff {
		o.MaxBackoff = DEFAULT_MAX_BACKOFF
		if o.MaxBackoff < o.InitialBackoff {
			o.MaxBackoff = o.InitialBackoff
		}
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.BreakerThreshold == 0 {
		o.BreakerThreshold = DEFAULT_BREAKER_THRESHOLD
	}
	if o.BreakerTimeout <= 0 {
		o.BreakerTimeout = DEFAULT_BREAKER_TIMEOUT
	}
	return o
}

// Processor splits comments into batches and drives them through an
// Analyzer. Comment IDs must be unique within a batch.
type Processor struct {
	analyzer analysis.Analyzer
	opts     Options
	breaker  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	now      func() time.Time
}

func NewProcessor(analyzer analysis.Analyzer, opts Options) *Processor {
	opts = opts.withDefaults()
	name := analyzer.Name()

	p := &Processor{
		analyzer: analyzer,
		opts:     opts,
		now:      time.Now,
	}

	// The breaker wraps whole batches, so the threshold counts consecutive
	// failed batches and a half-open breaker admits one batch per worker.
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "analyzer:" + name,
		MaxRequests: uint32(opts.Concurrency),
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(breaker string, from, to gobreaker.State) {
			slog.Warn("[BatchProcessor] Circuit breaker changed state",
				slog.String("breaker", breaker),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	if opts.RequestsPerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}

	return p
}

type tracker struct {
	mu        sync.Mutex
	event     models.ProgressEvent
	startedAt time.Time
	notify    func(models.ProgressEvent)
	now       func() time.Time
}

func (t *tracker) done(b models.Batch, status models.BatchStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.event.BatchIndex = b.Index
	t.event.BatchesCompleted++
	t.event.RecordsCompleted += b.Size()
	if status == models.BatchFailed {
		t.event.FailedBatches++
	}
	t.event.Elapsed = t.now().Sub(t.startedAt)
	remaining := t.event.BatchesTotal - t.event.BatchesCompleted
	t.event.ETA = time.Duration(float64(t.event.Elapsed) * float64(remaining) / float64(t.event.BatchesCompleted))

	slog.Info("[BatchProcessor] Batch completed",
		slog.Int("batch", b.Index),
		slog.String("status", string(status)),
		slog.Int("completed", t.event.BatchesCompleted),
		slog.Int("total", t.event.BatchesTotal),
		slog.Duration("eta", t.event.ETA))

	if t.notify != nil {
		t.notify(t.event)
	}
}

// Process analyzes comments in order. The returned run always holds one
// result per comment and one ledger entry per batch; batch failures are
// recorded rather than returned. The error is non-nil only when ctx ends
// before every batch ran.
func (p *Processor) Process(ctx context.Context, comments []models.Comment) (*models.Run, error) {
	name := p.analyzer.Name()
	run := &models.Run{
		ID:        uuid.NewString(),
		Analyzer:  name,
		StartedAt: p.now(),
		Results:   make([]models.AnalysisResult, len(comments)),
	}

	ranges := utils.Chunk(len(comments), p.opts.BatchSize)
	run.Ledger = make([]models.BatchOutcome, len(ranges))

	cached := p.lookupCache(ctx, comments, run)

	slog.Info("[BatchProcessor] Starting run",
		slog.String("run_id", run.ID),
		slog.String("analyzer", name),
		slog.Int("comments", len(comments)),
		slog.Int("batches", len(ranges)),
		slog.Int("cache_hits", run.CacheHits),
		slog.Int("concurrency", p.opts.Concurrency))

	progress := &tracker{
		event: models.ProgressEvent{
			RunID:        run.ID,
			BatchesTotal: len(ranges),
			RecordsTotal: len(comments),
		},
		startedAt: run.StartedAt,
		notify:    p.opts.OnProgress,
		now:       p.now,
	}

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)

	for i, r := range ranges {
		b := models.Batch{Index: i, Start: r.Start, End: r.End, Comments: comments[r.Start:r.End]}

		if err := ctx.Err(); err != nil {
			p.abandon(run, b, err)
			progress.done(b, models.BatchFailed)
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				p.abandon(run, b, err)
				progress.done(b, models.BatchFailed)
				return nil
			}
			outcome := p.processBatch(ctx, b, cached[r.Start:r.End], run.Results[r.Start:r.End])
			run.Ledger[b.Index] = outcome
			progress.done(b, outcome.Status)
			return nil
		})
	}
	g.Wait()

	run.FinishedAt = p.now()
	slog.Info("[BatchProcessor] Run finished",
		slog.String("run_id", run.ID),
		slog.Int("failed_batches", len(run.FailedBatches())),
		slog.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)))

	if err := ctx.Err(); err != nil {
		return run, err
	}
	return run, nil
}

// lookupCache fills slots answered by the cache and reports which ones.
// Cache errors only disable the cache for this run.
func (p *Processor) lookupCache(ctx context.Context, comments []models.Comment, run *models.Run) []bool {
	cached := make([]bool, len(comments))
	if p.opts.Cache == nil || len(comments) == 0 {
		return cached
	}

	keys := make([]string, len(comments))
	for i, c := range comments {
		keys[i] = cache.Key(p.analyzer.Name(), c.Text)
	}

	hits, err := p.opts.Cache.GetMany(ctx, keys)
	if err != nil {
		slog.Warn("[BatchProcessor] Cache lookup failed, analyzing everything",
			slog.String("error", err.Error()))
		return cached
	}

	for i, c := range comments {
		hit, ok := hits[keys[i]]
		if !ok || !hit.Analyzed() {
			continue
		}
		hit.CommentID = c.ID
		hit.Index = i
		hit.Source = CACHE_SOURCE
		run.Results[i] = hit
		cached[i] = true
		run.CacheHits++
	}
	monitoring.CacheHits.Add(float64(run.CacheHits))
	return cached
}

// abandon marks a batch that never ran as failed.
func (p *Processor) abandon(run *models.Run, b models.Batch, err error) {
	for j, c := range b.Comments {
		if run.Results[b.Start+j].Analyzed() {
			continue
		}
		run.Results[b.Start+j] = models.FailedResult(c.ID, b.Start+j, err)
	}
	run.Ledger[b.Index] = models.BatchOutcome{
		Index:  b.Index,
		Start:  b.Start,
		Size:   b.Size(),
		Status: models.BatchFailed,
		Error:  err.Error(),
	}
	monitoring.BatchesTotal.WithLabelValues(p.analyzer.Name(), string(models.BatchFailed)).Inc()
}

func (p *Processor) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.opts.InitialBackoff
	b.MaxInterval = p.opts.MaxBackoff
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.opts.MaxRetries)), ctx)
}

// guard runs one batch, retries included, through the circuit breaker. While
// the breaker is open the batch fails without calling the analyzer; while it
// is half-open and already admitting its quota, the batch waits its turn.
func (p *Processor) guard(ctx context.Context, batch func() error) error {
	wait := backoff.NewExponentialBackOff()
	wait.InitialInterval = p.opts.InitialBackoff
	wait.MaxInterval = p.opts.MaxBackoff
	wait.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		_, err := p.breaker.Execute(func() (interface{}, error) {
			return nil, batch()
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, gobreaker.ErrTooManyRequests):
			return err
		case errors.Is(err, gobreaker.ErrOpenState):
			return backoff.Permanent(fmt.Errorf("%w: analyzer unavailable: %v", models.ErrAPI, err))
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(wait, ctx))
}

// processBatch fills slots for the comments of b that the cache did not
// answer. Records returned by any attempt are kept; only the missing ones are
// sent again.
func (p *Processor) processBatch(ctx context.Context, b models.Batch, cached []bool, slots []models.AnalysisResult) models.BatchOutcome {
	name := p.analyzer.Name()
	start := p.now()
	outcome := models.BatchOutcome{Index: b.Index, Start: b.Start, Size: b.Size()}

	position := make(map[string]int, len(b.Comments))
	for j, c := range b.Comments {
		if !cached[j] {
			position[c.ID] = j
		}
	}
	if len(position) == 0 {
		outcome.Status = models.BatchSucceeded
		outcome.Duration = p.now().Sub(start)
		monitoring.BatchesTotal.WithLabelValues(name, string(outcome.Status)).Inc()
		return outcome
	}

	collected := make(map[int]models.AnalysisResult, len(position))

	operation := func() error {
		outcome.Attempts++

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		pending := make([]models.Comment, 0, len(position)-len(collected))
		for j, c := range b.Comments {
			if _, want := position[c.ID]; !want {
				continue
			}
			if _, done := collected[j]; !done {
				pending = append(pending, c)
			}
		}

		results, err := p.analyzer.AnalyzeBatch(ctx, pending)
		if err != nil {
			monitoring.BatchAttempts.WithLabelValues(name, "error").Inc()
			switch {
			case ctx.Err() != nil:
				return backoff.Permanent(ctx.Err())
			case analysis.IsPermanent(err):
				return backoff.Permanent(err)
			}
			return err
		}
		monitoring.BatchAttempts.WithLabelValues(name, "success").Inc()

		for _, r := range results {
			j, ok := position[r.CommentID]
			if !ok || !r.Analyzed() {
				continue
			}
			if _, done := collected[j]; !done {
				collected[j] = r
			}
		}

		if missing := len(position) - len(collected); missing > 0 {
			return fmt.Errorf("%w: %d of %d comments missing from response", models.ErrAPI, missing, len(position))
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		slog.Warn("[BatchProcessor] Batch attempt failed, will retry",
			slog.Int("batch", b.Index),
			slog.Int("attempt", outcome.Attempts),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()))
	}

	err := p.guard(ctx, func() error {
		return backoff.RetryNotify(operation, p.newBackOff(ctx), notify)
	})

	fresh := make(map[string]models.AnalysisResult, len(collected))
	for j, c := range b.Comments {
		if cached[j] {
			continue
		}
		r, ok := collected[j]
		if !ok {
			slots[j] = models.FailedResult(c.ID, b.Start+j, err)
			continue
		}
		r.CommentID = c.ID
		r.Index = b.Start + j
		if r.Source == "" {
			r.Source = name
		}
		slots[j] = r
		fresh[cache.Key(name, c.Text)] = r
	}

	switch {
	case err == nil:
		outcome.Status = models.BatchSucceeded
	case len(collected) > 0:
		outcome.Status = models.BatchPartial
		outcome.Error = err.Error()
	default:
		outcome.Status = models.BatchFailed
		outcome.Error = err.Error()
	}
	outcome.Duration = p.now().Sub(start)

	if err != nil {
		slog.Error("[BatchProcessor] Batch gave up",
			slog.Int("batch", b.Index),
			slog.String("status", string(outcome.Status)),
			slog.Int("attempts", outcome.Attempts),
			slog.Int("missing", len(position)-len(collected)),
			slog.String("error", err.Error()))
	}

	p.storeCache(ctx, fresh)
	p.record(outcome, len(collected), len(position)-len(collected))
	return outcome
}

func (p *Processor) storeCache(ctx context.Context, fresh map[string]models.AnalysisResult) {
	if p.opts.Cache == nil || len(fresh) == 0 || ctx.Err() != nil {
		return
	}
	if err := p.opts.Cache.SetMany(ctx, fresh); err != nil {
		slog.Warn("[BatchProcessor] Failed to cache results",
			slog.String("error", err.Error()))
	}
}

func (p *Processor) record(outcome models.BatchOutcome, analyzed, failed int) {
	name := p.analyzer.Name()
	monitoring.BatchesTotal.WithLabelValues(name, string(outcome.Status)).Inc()
	monitoring.BatchDuration.WithLabelValues(name).Observe(outcome.Duration.Seconds())
	monitoring.RecordsTotal.WithLabelValues(name, string(models.StatusAnalyzed)).Add(float64(analyzed))
	monitoring.RecordsTotal.WithLabelValues(name, string(models.StatusFailed)).Add(float64(failed))
}

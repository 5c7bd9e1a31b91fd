package cache

import (
	"context"
	"sync"
	"time"

	"github.com/spacesedan/feedbackflow/internal/models"
)

// Cache stores analyzed results by text so repeated runs over the same
// feedback do not pay for the same comment twice.
type Cache interface {
	GetMany(ctx context.Context, keys []string) (map[string]models.AnalysisResult, error)
	SetMany(ctx context.Context, results map[string]models.AnalysisResult) error
}

// Key scopes a comment text to the analyzer that produced the result.
func Key(analyzer, text string) string {
	return analyzer + ":" + models.TextKey(text)
}

// strip drops the fields that belong to one run, not to the text.
func strip(r models.AnalysisResult) models.AnalysisResult {
	r.CommentID = ""
	r.Index = 0
	r.Error = ""
	return r
}

type entry struct {
	result    models.AnalysisResult
	expiresAt time.Time
}

type Memory struct {
	mu    sync.RWMutex
	items map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

// NewMemory returns an in-process cache. A ttl <= 0 keeps entries forever.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		items: make(map[string]entry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (m *Memory) GetMany(_ context.Context, keys []string) (map[string]models.AnalysisResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := make(map[string]models.AnalysisResult)
	now := m.now()
	for _, key := range keys {
		e, ok := m.items[key]
		if !ok {
			continue
		}
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			continue
		}
		found[key] = e.result
	}
	return found, nil
}

func (m *Memory) SetMany(_ context.Context, results map[string]models.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expiresAt time.Time
	if m.ttl > 0 {
		expiresAt = m.now().Add(m.ttl)
	}
	for key, r := range results {
		if !r.Analyzed() {
			continue
		}
		m.items[key] = entry{result: strip(r), expiresAt: expiresAt}
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

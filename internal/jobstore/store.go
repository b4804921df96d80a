package jobstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultMaxItems = 1000

// Reader is the read API used by the HTTP routes.
type Reader interface {
	List(status Status, limit int) []Job
	Get(id string) (*Job, bool)
}

// MemoryStore keeps recent jobs in memory. The oldest entries are pruned past maxItems.
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[string]Job
	maxItems int
	now      func() time.Time
}

func NewMemoryStore(maxItems int) *MemoryStore {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	return &MemoryStore{
		items:    make(map[string]Job),
		maxItems: maxItems,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Submit records a new queued job and returns it with its generated id.
func (s *MemoryStore) Submit(job Job) Job {
	job.ID = uuid.NewString()
	job.Status = StatusQueued
	if s == nil {
		return job
	}
	job.CreatedAt = s.now()
	s.Upsert(job)
	return job
}

func (s *MemoryStore) Upsert(job Job) {
	if s == nil {
		return
	}
	id := strings.TrimSpace(job.ID)
	if id == "" {
		return
	}
	job.ID = id
	job.Status, _ = ParseStatus(string(job.Status))

	s.mu.Lock()
	s.items[id] = job
	s.pruneLocked()
	s.mu.Unlock()
}

func (s *MemoryStore) Update(id string, fn func(*Job)) {
	if s == nil || fn == nil {
		return
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	s.mu.Lock()
	item, ok := s.items[id]
	if ok {
		fn(&item)
		item.ID = id
		item.Status, _ = ParseStatus(string(item.Status))
		s.items[id] = item
	}
	s.mu.Unlock()
}

func (s *MemoryStore) MarkRunning(id string) {
	if s == nil {
		return
	}
	now := s.now()
	s.Update(id, func(j *Job) {
		j.Status = StatusRunning
		j.StartedAt = &now
	})
}

// Finish sets the terminal status from err. A canceled context maps to StatusCanceled.
func (s *MemoryStore) Finish(id, result string, err error) {
	if s == nil {
		return
	}
	now := s.now()
	s.Update(id, func(j *Job) {
		j.FinishedAt = &now
		switch {
		case err == nil:
			j.Status = StatusDone
			j.Result = result
		case errors.Is(err, context.Canceled):
			j.Status = StatusCanceled
			j.Error = err.Error()
		default:
			j.Status = StatusFailed
			j.Error = err.Error()
		}
	})
}

func (s *MemoryStore) Get(id string) (*Job, bool) {
	if s == nil {
		return nil, false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false
	}
	s.mu.RLock()
	item, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	cp := item
	return &cp, true
}

func (s *MemoryStore) List(status Status, limit int) []Job {
	if s == nil {
		return nil
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	statusNorm := strings.TrimSpace(strings.ToLower(string(status)))

	s.mu.RLock()
	out := make([]Job, 0, len(s.items))
	for _, item := range s.items {
		if statusNorm != "" && strings.ToLower(string(item.Status)) != statusNorm {
			continue
		}
		out = append(out, item)
	}
	s.mu.RUnlock()

	sortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *MemoryStore) pruneLocked() {
	if s.maxItems <= 0 || len(s.items) <= s.maxItems {
		return
	}
	all := make([]Job, 0, len(s.items))
	for _, item := range s.items {
		all = append(all, item)
	}
	sortNewestFirst(all)
	keep := make(map[string]Job, s.maxItems)
	for i := 0; i < len(all) && i < s.maxItems; i++ {
		keep[all[i].ID] = all[i]
	}
	s.items = keep
}

func sortNewestFirst(items []Job) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

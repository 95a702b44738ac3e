package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry is the single owner of the schedule collection. Every operation
// is a whole-collection read-modify-write against the Blob, serialized by
// one mutex so interleaved poller ticks and menu actions cannot clobber
// each other. Nothing is cached between calls.
type Registry struct {
	blob Blob
	mu   sync.Mutex
}

func NewRegistry(blob Blob) *Registry {
	return &Registry{blob: blob}
}

// load reads the collection, degrading to an empty collection when the
// backing read fails. Caller must hold r.mu.
func (r *Registry) load(ctx context.Context) []Entry {
	entries, err := r.blob.Load(ctx)
	if err != nil {
		slog.Warn("schedule store read failed, treating as empty", "error", err)
		return []Entry{}
	}
	return entries
}

// Add appends an entry and persists the collection.
func (r *Registry) Add(ctx context.Context, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := append(r.load(ctx), entry)
	if err := r.blob.Save(ctx, entries); err != nil {
		return fmt.Errorf("failed to persist schedule: %w", err)
	}
	return nil
}

// Entries returns a snapshot of the collection in insertion order.
func (r *Registry) Entries(ctx context.Context) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// Get returns the entry with the given ID, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, id string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.load(ctx) {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

// Delete removes the entry with the given ID.
func (r *Registry) Delete(ctx context.Context, id string) error {
	return r.mutate(ctx, id, func(entries []Entry, i int) []Entry {
		return append(entries[:i], entries[i+1:]...)
	})
}

// DeleteAll unconditionally clears the collection.
func (r *Registry) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.blob.Save(ctx, []Entry{}); err != nil {
		return fmt.Errorf("failed to persist schedule: %w", err)
	}
	return nil
}

// UpdateTime replaces the scheduled time of the entry with the given ID.
func (r *Registry) UpdateTime(ctx context.Context, id string, t time.Time) error {
	return r.mutate(ctx, id, func(entries []Entry, i int) []Entry {
		entries[i].Time = t
		return entries
	})
}

// UpdateMessage replaces the message body of the entry with the given ID.
// The body must be non-empty; that is the caller's contract.
func (r *Registry) UpdateMessage(ctx context.Context, id, message string) error {
	if message == "" {
		return fmt.Errorf("schedule message must not be empty")
	}
	return r.mutate(ctx, id, func(entries []Entry, i int) []Entry {
		entries[i].Message = message
		return entries
	})
}

// mutate runs fn against the position of id and persists the result.
func (r *Registry) mutate(ctx context.Context, id string, fn func([]Entry, int) []Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.load(ctx)
	for i := range entries {
		if entries[i].ID != id {
			continue
		}
		if err := r.blob.Save(ctx, fn(entries, i)); err != nil {
			return fmt.Errorf("failed to persist schedule: %w", err)
		}
		return nil
	}
	return ErrNotFound
}

// TakeDue partitions the collection against a single captured now: entries
// with Time <= now are claimed and returned, the rest are persisted back in
// their original order. The whole partition happens under the store lock;
// delivery of the claimed entries is the caller's business and must happen
// after this returns, without the lock.
func (r *Registry) TakeDue(ctx context.Context, now time.Time) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.load(ctx)
	due := make([]Entry, 0)
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Time.After(now) {
			due = append(due, e)
		} else {
			kept = append(kept, e)
		}
	}
	if len(due) == 0 {
		return nil, nil
	}

	if err := r.blob.Save(ctx, kept); err != nil {
		// Nothing is claimed on a failed save; the next tick retries.
		return nil, fmt.Errorf("failed to persist remaining schedules: %w", err)
	}
	return due, nil
}

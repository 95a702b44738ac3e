package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// EditMode says which field of an entry the next admin message updates.
type EditMode int

const (
	EditTime EditMode = iota
	EditMessage
)

// editSession is one open edit interaction. Entries are addressed by their
// stable ID, never by list position, so a concurrent delete or delivery
// cannot redirect the edit to a different entry.
type editSession struct {
	Mode    EditMode
	EntryID string
}

// Sessions tracks open edit sessions keyed by admin sender ID. Opening a
// new session for a sender silently replaces any existing one.
type Sessions struct {
	registry *Registry
	loc      *time.Location
	clock    func() time.Time
	mu       sync.Mutex
	open     map[string]editSession
}

func NewSessions(registry *Registry, loc *time.Location, clock func() time.Time) *Sessions {
	if clock == nil {
		clock = time.Now
	}
	return &Sessions{
		registry: registry,
		loc:      loc,
		clock:    clock,
		open:     make(map[string]editSession),
	}
}

// Open starts (or replaces) an edit session for senderID targeting entryID.
func (s *Sessions) Open(senderID string, mode EditMode, entryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open[senderID] = editSession{Mode: mode, EntryID: entryID}
}

// IsOpen reports whether senderID has an edit session open.
func (s *Sessions) IsOpen(senderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.open[senderID]
	return ok
}

// Clear drops any open session for senderID.
func (s *Sessions) Clear(senderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.open, senderID)
}

// Consume applies input as the pending field update for senderID's open
// session. Returns handled=false when no session is open, in which case the
// input is ordinary conversation.
//
// Malformed input keeps the session open so the admin can retry in place;
// a stale entry or a store failure clears the session and reports the
// error; success commits the update and clears the session.
func (s *Sessions) Consume(ctx context.Context, senderID, input string) (handled bool, reply string) {
	s.mu.Lock()
	sess, ok := s.open[senderID]
	s.mu.Unlock()
	if !ok {
		return false, ""
	}

	switch sess.Mode {
	case EditTime:
		return true, s.consumeTime(ctx, senderID, sess.EntryID, input)
	case EditMessage:
		return true, s.consumeMessage(ctx, senderID, sess.EntryID, input)
	default:
		s.Clear(senderID)
		return true, "Something went wrong with that edit, please start over."
	}
}

func (s *Sessions) consumeTime(ctx context.Context, senderID, entryID, input string) string {
	fields := strings.Fields(input)
	if len(fields) != 2 {
		return timeFormatHint
	}

	t, err := ParseDateTime(fields[0], fields[1], s.loc)
	if err != nil {
		return timeFormatHint
	}
	if err := EnsureFuture(t, s.clock().In(s.loc)); err != nil {
		return fmt.Sprintf("That time has already passed (%s). Send a future date and time.", RenderTime(t))
	}

	if err := s.registry.UpdateTime(ctx, entryID, t); err != nil {
		s.Clear(senderID)
		if errors.Is(err, ErrNotFound) {
			return "That schedule no longer exists, it was deleted or already delivered."
		}
		return fmt.Sprintf("Couldn't save the new time: %v", err)
	}

	s.Clear(senderID)
	return fmt.Sprintf("⏰ Schedule updated to %s.", RenderTime(t))
}

func (s *Sessions) consumeMessage(ctx context.Context, senderID, entryID, input string) string {
	message := strings.TrimSpace(input)
	if message == "" {
		return "The message can't be empty. Send the new message text."
	}

	if err := s.registry.UpdateMessage(ctx, entryID, message); err != nil {
		s.Clear(senderID)
		if errors.Is(err, ErrNotFound) {
			return "That schedule no longer exists, it was deleted or already delivered."
		}
		return fmt.Sprintf("Couldn't save the new message: %v", err)
	}

	s.Clear(senderID)
	return "✏️ Schedule message updated."
}

const timeFormatHint = "Send the new time as \"YYYY-MM-DD HH:MM\", \"YYYY-MM-DD H:MMAM/PM\" or \"YYYY-MM-DD HAM/PM\"."

package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidFormat means a date/time string matched none of the accepted grammars.
	ErrInvalidFormat = errors.New("invalid date/time format")
	// ErrPastTime means a parsed timestamp is not strictly in the future.
	ErrPastTime = errors.New("time is not in the future")
	// ErrNotFound means an entry ID no longer addresses a stored entry.
	ErrNotFound = errors.New("schedule entry not found")
)

// Entry is one pending timed message.
type Entry struct {
	ID          string    `json:"id"`
	Time        time.Time `json:"time"` // absolute instant, carries the bot timezone
	RecipientID string    `json:"recipient_id"`
	Message     string    `json:"message"`
}

// NewEntry creates an Entry with a fresh ID. Message must be non-empty.
func NewEntry(t time.Time, recipientID, message string) (Entry, error) {
	if message == "" {
		return Entry{}, fmt.Errorf("schedule message must not be empty")
	}
	return Entry{
		ID:          uuid.NewString(),
		Time:        t,
		RecipientID: recipientID,
		Message:     message,
	}, nil
}

const bookVersion = 1

// Book is the persisted envelope for the schedule collection.
type Book struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// UnmarshalJSON accepts both the versioned envelope and the legacy bare
// array of entries. An empty or entry-less envelope reads as an empty
// collection. Legacy entries without an ID get one assigned.
func (b *Book) UnmarshalJSON(data []byte) error {
	if firstToken(data) == '[' {
		var legacy []Entry
		if err := json.Unmarshal(data, &legacy); err != nil {
			return fmt.Errorf("failed to decode legacy schedule array: %w", err)
		}
		b.Version = bookVersion
		b.Entries = legacy
		for i := range b.Entries {
			if b.Entries[i].ID == "" {
				b.Entries[i].ID = uuid.NewString()
			}
		}
		return nil
	}

	type book Book // avoid recursion
	var v book
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("failed to decode schedule envelope: %w", err)
	}
	*b = Book(v)
	if b.Version == 0 {
		b.Version = bookVersion
	}
	return nil
}

func firstToken(data []byte) byte {
	for _, c := range data {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return c
	}
	return 0
}

package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Message is a single conversational turn.
type Message struct {
	Role      string `json:"role"` // "user" or "assistant"
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// TranscriptMeta is stored as the first line of the JSONL file.
type TranscriptMeta struct {
	Key       string `json:"key"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Transcript holds the conversation state for one chat.
type Transcript struct {
	Meta     TranscriptMeta
	Messages []Message
	mu       sync.RWMutex
}

// Append adds a turn (append-only, never delete).
func (t *Transcript) Append(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	t.Messages = append(t.Messages, msg)
	t.Meta.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

// Window returns the last n messages (all of them when n <= 0 or the
// transcript is shorter).
func (t *Transcript) Window(n int) []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	start := 0
	if n > 0 && len(t.Messages) > n {
		start = len(t.Messages) - n
	}
	result := make([]Message, len(t.Messages)-start)
	copy(result, t.Messages[start:])
	return result
}

// Len returns the number of recorded turns.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.Messages)
}

// FormatTail renders the last n turns as log lines for the admin.
func (t *Transcript) FormatTail(n int) string {
	msgs := t.Window(n)
	if len(msgs) == 0 {
		return "No conversation recorded yet."
	}
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Timestamp, m.Role, m.Content)
	}
	return b.String()
}

// Manager handles transcript persistence.
type Manager struct {
	dataDir string
	cache   map[string]*Transcript
	mu      sync.Mutex
}

// NewManager creates a Manager rooted at dataDir.
func NewManager(dataDir string) *Manager {
	return &Manager{
		dataDir: dataDir,
		cache:   make(map[string]*Transcript),
	}
}

// keyToFilename replaces unsafe characters for use as a filename.
func keyToFilename(key string) string {
	r := strings.NewReplacer(":", "_", "/", "_")
	return r.Replace(key) + ".jsonl"
}

// GetOrCreate returns the existing transcript or creates a new one.
func (m *Manager) GetOrCreate(key string) *Transcript {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.cache[key]; ok {
		return t
	}

	t := m.load(key)
	if t == nil {
		now := time.Now().UTC().Format(time.RFC3339)
		t = &Transcript{
			Meta: TranscriptMeta{
				Key:       key,
				CreatedAt: now,
				UpdatedAt: now,
			},
			Messages: []Message{},
		}
	}
	m.cache[key] = t
	return t
}

// Save persists a transcript to its JSONL file.
func (m *Manager) Save(t *Transcript) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if err := os.MkdirAll(m.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	path := filepath.Join(m.dataDir, keyToFilename(t.Meta.Key))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create transcript file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if err := enc.Encode(t.Meta); err != nil {
		return fmt.Errorf("failed to write transcript meta: %w", err)
	}
	for _, msg := range t.Messages {
		if err := enc.Encode(msg); err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
	}
	return nil
}

// load reads a transcript from disk; returns nil if the file does not exist.
func (m *Manager) load(key string) *Transcript {
	path := filepath.Join(m.dataDir, keyToFilename(key))
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	// First line is TranscriptMeta
	if !scanner.Scan() {
		return nil
	}
	var meta TranscriptMeta
	if err := json.Unmarshal(scanner.Bytes(), &meta); err != nil {
		return nil
	}

	var messages []Message
	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	if messages == nil {
		messages = []Message{}
	}

	return &Transcript{Meta: meta, Messages: messages}
}

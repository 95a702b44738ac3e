package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MemoryStore manages MEMORY.md, the long-term facts fed into the system
// prompt. Facts are plain markdown lines; the file is re-read on every
// prompt build so external edits take effect immediately.
type MemoryStore struct {
	dataDir string
	mu      sync.Mutex
}

func NewMemoryStore(dataDir string) *MemoryStore {
	return &MemoryStore{dataDir: dataDir}
}

func (m *MemoryStore) path() string {
	return filepath.Join(m.dataDir, "MEMORY.md")
}

// Read returns the content of MEMORY.md, or empty string if not found.
func (m *MemoryStore) Read() string {
	data, err := os.ReadFile(m.path())
	if err != nil {
		return ""
	}
	return string(data)
}

// Append adds one dated fact line to MEMORY.md.
func (m *MemoryStore) Append(fact string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	line := fmt.Sprintf("- [%s] %s\n", time.Now().UTC().Format("2006-01-02"), fact)
	f, err := os.OpenFile(m.path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open MEMORY.md: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to write MEMORY.md: %w", err)
	}
	return nil
}

package goAuthClient

import (
	"fmt"
	"log/slog"
	"sync"
)

// BackupCodes is a batch of single-use codes issued when a second factor is
// activated. The batch can be read once; Reveal wipes it from memory and no API
// fetches it again.
type BackupCodes struct {
	mu       sync.Mutex
	codes    []string
	count    int
	revealed bool
}

func newBackupCodes(codes []string) *BackupCodes {
	cp := make([]string, len(codes))
	copy(cp, codes)
	return &BackupCodes{codes: cp, count: len(cp)}
}

// Reveal returns the batch on the first call and nil, false afterwards.
func (b *BackupCodes) Reveal() ([]string, bool) {
	if b == nil {
		return nil, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.revealed {
		return nil, false
	}
	out := b.codes
	b.codes = nil
	b.revealed = true
	return out, true
}

// Revealed reports whether Reveal has been called.
func (b *BackupCodes) Revealed() bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.revealed
}

// Len is the size of the batch as issued.
func (b *BackupCodes) Len() int {
	if b == nil {
		return 0
	}
	return b.count
}

func (b *BackupCodes) String() string {
	return fmt.Sprintf("BackupCodes(%d, revealed=%t)", b.Len(), b.Revealed())
}

// LogValue implements slog.LogValuer without exposing codes.
func (b *BackupCodes) LogValue() slog.Value {
	return slog.GroupValue(slog.Int("count", b.Len()), slog.Bool("revealed", b.Revealed()))
}

package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/studyshare/backend/pkg/logger"
	"go.uber.org/zap"
)

// Op is the kind of blob mutation an entry records.
type Op string

const (
	// OpUpload: blob bytes are being written; the metadata record is
	// not committed yet. A pending upload entry at startup means the
	// blob may be an orphan.
	OpUpload Op = "upload"
	// OpDelete: the metadata record is gone; the blob still needs
	// removing. A pending delete entry at startup means the blob may
	// have survived a failed remove.
	OpDelete Op = "delete"
)

// Entry is one intent record in the journal.
type Entry struct {
	EntryID   string    `json:"entry_id"`
	Op        Op        `json:"op"`
	Kind      string    `json:"kind"` // storage kind: materials or avatars
	ObjectKey string    `json:"object_key"`
	Timestamp time.Time `json:"timestamp"`
}

// Journal is an append-only intent log for blob mutations. An entry is
// recorded before the risky step and resolved after the whole operation
// commits; anything still pending at startup is reconciled
// (at-least-once cleanup, so reconciliation actions must be idempotent).
type Journal struct {
	filePath string
	file     *os.File
	mu       sync.Mutex
}

func NewJournal(filePath string) (*Journal, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &Journal{
		filePath: filePath,
		file:     file,
	}, nil
}

// Record appends an entry and syncs it to disk before returning, so the
// intent survives a crash that happens during the operation itself.
func (j *Journal) Record(entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	if _, err := j.file.WriteString(string(data) + "\n"); err != nil {
		logger.Log.Error("Journal: failed to append entry",
			zap.String("entry_id", entry.EntryID),
			zap.String("object_key", entry.ObjectKey),
			zap.Error(err),
		)
		return err
	}

	if err := j.file.Sync(); err != nil {
		logger.Log.Error("Journal: failed to sync",
			zap.String("entry_id", entry.EntryID),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// Pending returns every unresolved entry.
func (j *Journal) Pending() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.readAllUnsafe()
}

// Resolve removes the given entries by rewriting the journal file.
// The temp-file-plus-rename keeps the journal valid even if the
// process dies mid-rewrite.
func (j *Journal) Resolve(entryIDs ...string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	allEntries, err := j.readAllUnsafe()
	if err != nil {
		return err
	}

	resolved := make(map[string]bool, len(entryIDs))
	for _, id := range entryIDs {
		resolved[id] = true
	}

	var remaining []Entry
	for _, entry := range allEntries {
		if !resolved[entry.EntryID] {
			remaining = append(remaining, entry)
		}
	}

	if err := j.file.Close(); err != nil {
		return err
	}

	tempFile := j.filePath + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		// The old file is intact; reopen it so Record keeps working.
		if reopenErr := j.reopenUnsafe(); reopenErr != nil {
			return reopenErr
		}
		return err
	}

	for _, entry := range remaining {
		data, _ := json.Marshal(entry)
		f.WriteString(string(data) + "\n")
	}

	f.Sync()
	f.Close()

	if err := os.Rename(tempFile, j.filePath); err != nil {
		logger.Log.Error("Journal: failed to replace file",
			zap.String("temp_file", tempFile),
			zap.Error(err),
		)
		os.Remove(tempFile)
		if reopenErr := j.reopenUnsafe(); reopenErr != nil {
			return reopenErr
		}
		return err
	}

	if err := j.reopenUnsafe(); err != nil {
		return err
	}

	logger.Log.Debug("Journal: entries resolved",
		zap.Int("resolved", len(allEntries)-len(remaining)),
		zap.Int("remaining", len(remaining)),
	)

	return nil
}

// reopenUnsafe restores the append handle after Resolve closed it.
// Caller must hold the lock.
func (j *Journal) reopenUnsafe() error {
	file, err := os.OpenFile(j.filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	j.file = file
	return nil
}

// readAllUnsafe reads all entries without locking (internal use only).
func (j *Journal) readAllUnsafe() ([]Entry, error) {
	file, err := os.Open(j.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			// A torn final line from a crash is expected; skip it.
			continue
		}
		entries = append(entries, entry)
	}

	return entries, scanner.Err()
}

// Close closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

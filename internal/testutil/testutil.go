package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/studyshare/backend/internal/journal"
	"github.com/studyshare/backend/internal/models"
	"github.com/studyshare/backend/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TestDatabase holds test database connection (in-memory SQLite)
type TestDatabase struct {
	DB  *gorm.DB
	DSN string
}

// TestRedis holds test Redis mock (miniredis)
type TestRedis struct {
	Server *miniredis.Miniredis
	URL    string
}

// SetupTestDatabase creates an in-memory SQLite database for
// integration tests. No Docker required; fast and isolated. The
// production models migrate unchanged because IDs are generated
// app-side, not by a database default.
func SetupTestDatabase(t *testing.T) *TestDatabase {
	dsn := "file::memory:?cache=shared"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	err = db.AutoMigrate(&models.User{}, &models.Material{}, &models.Comment{})
	if err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return &TestDatabase{
		DB:  db,
		DSN: dsn,
	}
}

// Teardown cleans up the test database (closes connection)
func (td *TestDatabase) Teardown(t *testing.T) {
	sqlDB, err := td.DB.DB()
	if err != nil {
		t.Logf("Warning: Failed to get underlying DB: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		t.Logf("Warning: Failed to close database: %v", err)
	}
}

// SetupTestRedis creates an in-memory Redis mock (miniredis)
func SetupTestRedis(t *testing.T) *TestRedis {
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	redisURL := fmt.Sprintf("redis://%s", server.Addr())

	return &TestRedis{
		Server: server,
		URL:    redisURL,
	}
}

// Teardown cleans up the test Redis mock
func (tr *TestRedis) Teardown(t *testing.T) {
	tr.Server.Close()
}

// SetupTestStorage returns a local blob store rooted in a temp dir.
func SetupTestStorage(t *testing.T) *storage.LocalStore {
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create test blob store: %v", err)
	}
	return store
}

// SetupTestJournal returns an upload journal in a temp dir.
func SetupTestJournal(t *testing.T) *journal.Journal {
	j, err := journal.NewJournal(filepath.Join(t.TempDir(), "journal"))
	if err != nil {
		t.Fatalf("Failed to create test journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// CleanDatabase deletes all records from tables (for test isolation)
func CleanDatabase(t *testing.T, db *gorm.DB) {
	// Children first; SQLite doesn't support TRUNCATE
	tables := []string{"comments", "materials", "users"}
	for _, table := range tables {
		if err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			t.Logf("Warning: Failed to clean table %s: %v", table, err)
		}
	}
}

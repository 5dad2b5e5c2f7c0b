package database

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewTestDB returns a migrated, private in-memory SQLite database that is
// closed when t finishes.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	url := fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := Open(url, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })
	return db
}

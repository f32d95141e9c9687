// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/pkg/database"
)

// NewDB opens a migrated in-memory SQLite database private to t.
// A single connection is used so transactions serialize.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     "file:" + name + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

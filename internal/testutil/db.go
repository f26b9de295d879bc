// Package testutil builds isolated databases and fixtures for engine tests.
package testutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/sudo-adi/bs-server-sub001/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrInjected is returned by writes blocked with FailWritesOn.
var ErrInjected = errors.New("injected write failure")

// NewTestDB opens a private in-memory SQLite database with every engine
// table migrated. It is closed when the test ends.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// FailWritesOn makes every create and update against table fail with
// ErrInjected, so callers can assert that a transaction rolled back.
func FailWritesOn(t testing.TB, db *gorm.DB, table string) {
	t.Helper()

	name := "testutil:fail_" + table
	fail := func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			tx.AddError(ErrInjected)
		}
	}
	if err := db.Callback().Create().Before("gorm:create").Register(name, fail); err != nil {
		t.Fatalf("register create hook: %v", err)
	}
	if err := db.Callback().Update().Before("gorm:update").Register(name, fail); err != nil {
		t.Fatalf("register update hook: %v", err)
	}
}

// Package dbtest opens throwaway SQLite databases migrated with the real
// goose migrations.
package dbtest

import (
	"context"
	"fmt"
	"io"
	"log"
	"regexp"
	"testing"

	"github.com/angelmondragon/crushlink-backend/pkg/config"
	"github.com/angelmondragon/crushlink-backend/pkg/db"
	"github.com/angelmondragon/crushlink-backend/pkg/migrate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// Open returns a migrated in-memory database private to t.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", unsafeName.ReplaceAllString(t.Name(), "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.Up(context.Background(), sqlDB, "sqlite3"); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// Client wraps Open in a *db.Client.
func Client(t testing.TB) *db.Client {
	t.Helper()
	return db.Wrap(Open(t), config.DBDriverSQLite)
}

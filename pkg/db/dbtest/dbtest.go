// Package dbtest opens isolated in-memory sqlite databases for package tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/trydo/wts-backend/pkg/db"
)

// Open returns a migrated client backed by a private in-memory database.
func Open(t testing.TB) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	client := db.NewFromConn(conn)
	if err := client.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// OpenWithWriter returns a migrated client together with a running Writer.
func OpenWithWriter(t testing.TB) (*db.Client, *db.Writer) {
	t.Helper()

	client := Open(t)
	writer, err := db.NewWriter(client, 16, nil)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	t.Cleanup(writer.Close)
	return client, writer
}

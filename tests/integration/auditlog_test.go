package integration

import (
	"context"
	"testing"
	"time"

	"github.com/leafpress/go-bookstore/internal/models"
	"github.com/leafpress/go-bookstore/internal/store"
)

func TestAuditLogRetentionPurge(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	admin := createTestUser(t, db)

	entry := store.AuditEntry{
		ActorID:    admin.ID,
		ActorEmail: admin.Email,
		Action:     "book.create",
		Entity:     "book",
		EntityID:   "1",
	}

	if err := store.AppendAuditLog(ctx, db, entry, 90*24*time.Hour); err != nil {
		t.Fatalf("Append audit log: %v", err)
	}

	// Backdate the first entry past the retention window, then append another
	// one. The insert should purge the stale entry as a side effect.
	if _, err := db.ExecContext(ctx,
		`UPDATE audit_logs SET created_at = NOW() - INTERVAL '91 days'`); err != nil {
		t.Fatalf("Backdate audit log: %v", err)
	}

	entry.Action = "book.update"
	if err := store.AppendAuditLog(ctx, db, entry, 90*24*time.Hour); err != nil {
		t.Fatalf("Append audit log: %v", err)
	}

	page, err := store.ListAuditLogs(ctx, db, 1, 10)
	if err != nil {
		t.Fatalf("List audit logs: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("Expected 1 remaining audit log, got %d", page.Total)
	}

	logs, ok := page.Items.([]models.AuditLog)
	if !ok {
		t.Fatalf("Expected []models.AuditLog items, got %T", page.Items)
	}
	if logs[0].Action != "book.update" {
		t.Errorf("Expected surviving entry book.update, got %q", logs[0].Action)
	}
}

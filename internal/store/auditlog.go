package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leafpress/go-bookstore/internal/models"
)

type AuditEntry struct {
	ActorID    int64
	ActorEmail string
	Action     string
	Entity     string
	EntityID   string
	Detail     string
}

// AppendAuditLog records an admin action and, in the same call, purges
// entries past the retention window. Postgres has no TTL index, so expiry
// rides along with every insert instead.
func AppendAuditLog(ctx context.Context, db *sql.DB, entry AuditEntry, retention time.Duration) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, actor_id, actor_email, action, entity, entity_id, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		uuid.NewString(), entry.ActorID, entry.ActorEmail, entry.Action, entry.Entity, entry.EntityID, entry.Detail)
	if err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`DELETE FROM audit_logs WHERE created_at < $1`,
		time.Now().Add(-retention)); err != nil {
		return fmt.Errorf("purge audit logs: %w", err)
	}

	return nil
}

func ListAuditLogs(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count audit logs: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT id, actor_id, actor_email, action, entity, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		err := rows.Scan(
			&l.ID,
			&l.ActorID,
			&l.ActorEmail,
			&l.Action,
			&l.Entity,
			&l.EntityID,
			&l.Detail,
			&l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &OffsetPage{
		Items:      logs,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

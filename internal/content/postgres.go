package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new record with a generated UUID.
func (s *PostgresStore) Create(ctx context.Context, record *Record) error {
	record.ID = uuid.New().String()

	query := `
		INSERT INTO content (id, owner_id, type, text, images, shop_id, ranking_entry_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		record.ID,
		record.OwnerID,
		record.Type,
		record.Text,
		pq.Array(record.Images),
		record.ShopID,
		record.RankingEntryID,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create content: %w", err)
	}

	return nil
}

// GetByID retrieves a record by its UUID, excluding soft-deleted records.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Record, error) {
	query := `
		SELECT id, owner_id, type, text, images, shop_id, ranking_entry_id, created_at, updated_at
		FROM content
		WHERE id = $1 AND deleted_at IS NULL
	`
	var r Record
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&r.ID,
		&r.OwnerID,
		&r.Type,
		&r.Text,
		pq.Array(&r.Images),
		&r.ShopID,
		&r.RankingEntryID,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content: %w", err)
	}

	return &r, nil
}

// ListVisitRecords returns the owner's non-deleted visit records for a shop.
func (s *PostgresStore) ListVisitRecords(ctx context.Context, ownerID, shopID int64) ([]*Record, error) {
	query := `
		SELECT id, owner_id, type, text, images, shop_id, ranking_entry_id, created_at, updated_at
		FROM content
		WHERE owner_id = $1 AND shop_id = $2 AND type = $3 AND deleted_at IS NULL
		ORDER BY created_at DESC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, ownerID, shopID, TypeVisitRecord)
	if err != nil {
		return nil, fmt.Errorf("failed to list visit records: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warn("failed to close rows", "error", err)
		}
	}()

	var result []*Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(
			&r.ID,
			&r.OwnerID,
			&r.Type,
			&r.Text,
			pq.Array(&r.Images),
			&r.ShopID,
			&r.RankingEntryID,
			&r.CreatedAt,
			&r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan visit record: %w", err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate visit records: %w", err)
	}

	return result, nil
}

// SoftDeleteVisitRecords soft-deletes all of the owner's visit records
// for a shop.
func (s *PostgresStore) SoftDeleteVisitRecords(ctx context.Context, ownerID, shopID int64) (int, error) {
	query := `
		UPDATE content
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE owner_id = $1 AND shop_id = $2 AND type = $3 AND deleted_at IS NULL
	`
	res, err := s.db.ExecContext(ctx, query, ownerID, shopID, TypeVisitRecord)
	if err != nil {
		return 0, fmt.Errorf("failed to soft-delete visit records: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return int(affected), nil
}

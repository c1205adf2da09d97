package ranklist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/edwds/mimy/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL with full
// transaction support. Rank shifts and the inserted/deleted row commit
// together; a failure at any point rolls the whole operation back.
//
// The users_ranking table carries UNIQUE (owner_id, rank) DEFERRABLE
// INITIALLY DEFERRED, so intra-transaction shifts may pass through
// transient duplicates while the committed state is always contiguous.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

// begin starts a read-committed transaction with rollback-on-defer wiring.
func (r *PostgresRepository) begin(ctx context.Context) (*sql.Tx, func(), error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	rollback := func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Warn("failed to rollback transaction", "error", err)
		}
	}

	return tx, rollback, nil
}

// ListByOwner returns all of an owner's entries ordered by rank ascending.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*Entry, error) {
	query := `
		SELECT id, owner_id, shop_id, rank, satisfaction_tier, updated_at
		FROM users_ranking
		WHERE owner_id = $1
		ORDER BY rank ASC
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", "error", err)
		}
	}()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.ShopID, &e.Rank, &e.Tier, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	return entries, nil
}

// Get retrieves the entry for (owner, shop).
func (r *PostgresRepository) Get(ctx context.Context, ownerID, shopID int64) (*Entry, error) {
	query := `
		SELECT id, owner_id, shop_id, rank, satisfaction_tier, updated_at
		FROM users_ranking
		WHERE owner_id = $1 AND shop_id = $2
	`
	var e Entry
	err := r.db.QueryRowContext(ctx, query, ownerID, shopID).
		Scan(&e.ID, &e.OwnerID, &e.ShopID, &e.Rank, &e.Tier, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	return &e, nil
}

// InsertAt inserts the entry at entry.Rank, shifting later entries up by one.
func (r *PostgresRepository) InsertAt(ctx context.Context, entry *Entry) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users_ranking", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback()

	shift := `
		UPDATE users_ranking
		SET rank = rank + 1, updated_at = NOW()
		WHERE owner_id = $1 AND rank >= $2
	`
	if _, err := tx.ExecContext(ctx, shift, entry.OwnerID, entry.Rank); err != nil {
		return fmt.Errorf("failed to shift ranks: %w", err)
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	insert := `
		INSERT INTO users_ranking (id, owner_id, shop_id, rank, satisfaction_tier, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	if _, err := tx.ExecContext(ctx, insert, entry.ID, entry.OwnerID, entry.ShopID, entry.Rank, entry.Tier); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insert: %w", err)
	}

	return nil
}

// DeleteAndCloseGap removes the (owner, shop) entry and closes the rank gap.
func (r *PostgresRepository) DeleteAndCloseGap(ctx context.Context, ownerID, shopID int64) (deleted *Entry, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users_ranking", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback()

	del := `
		DELETE FROM users_ranking
		WHERE owner_id = $1 AND shop_id = $2
		RETURNING id, owner_id, shop_id, rank, satisfaction_tier, updated_at
	`
	var e Entry
	err = tx.QueryRowContext(ctx, del, ownerID, shopID).
		Scan(&e.ID, &e.OwnerID, &e.ShopID, &e.Rank, &e.Tier, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete entry: %w", err)
	}

	closeGap := `
		UPDATE users_ranking
		SET rank = rank - 1, updated_at = NOW()
		WHERE owner_id = $1 AND rank > $2
	`
	if _, err = tx.ExecContext(ctx, closeGap, ownerID, e.Rank); err != nil {
		return nil, fmt.Errorf("failed to close rank gap: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}

	return &e, nil
}

// ApplyRanks updates rank and tier for the given tuples in one transaction.
func (r *PostgresRepository) ApplyRanks(ctx context.Context, ownerID int64, items []ReorderItem) (err error) {
	if len(items) == 0 {
		return nil
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "users_ranking", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback()

	update := `
		UPDATE users_ranking
		SET rank = $3, satisfaction_tier = $4, updated_at = NOW()
		WHERE owner_id = $1 AND shop_id = $2
	`
	for _, item := range items {
		res, err := tx.ExecContext(ctx, update, ownerID, item.ShopID, item.Rank, item.Tier)
		if err != nil {
			return fmt.Errorf("failed to update entry for shop %d: %w", item.ShopID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if affected == 0 {
			return ErrEntryNotFound
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}

	return nil
}

// CountByOwner returns the number of entries the owner has.
func (r *PostgresRepository) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM users_ranking WHERE owner_id = $1`
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// Owners returns the IDs of all users that have at least one entry.
func (r *PostgresRepository) Owners(ctx context.Context) ([]int64, error) {
	query := `SELECT DISTINCT owner_id FROM users_ranking ORDER BY owner_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", "error", err)
		}
	}()

	var owners []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan owner id: %w", err)
		}
		owners = append(owners, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate owners: %w", err)
	}

	return owners, nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

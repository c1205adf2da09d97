package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/edwds/mimy/internal/match"
	"github.com/edwds/mimy/internal/ranklist"
	"github.com/edwds/mimy/internal/taste"
)

// PostgresSource implements VectorStore, match.SignalSource, and
// match.OwnRankingSource against PostgreSQL. Taste vectors live as a
// JSONB document on the users table; reviewer signals are assembled in
// one query with the eligibility floor pushed into a CTE so the data
// pulled per request stays bounded.
type PostgresSource struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSource creates a new PostgresSource.
func NewPostgresSource(db *sql.DB, logger *slog.Logger) *PostgresSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSource{
		db:     db,
		logger: logger,
	}
}

// GetTasteVector returns the user's taste vector, or (nil, nil) when the
// user has no taste assessment.
func (s *PostgresSource) GetTasteVector(ctx context.Context, userID int64) (*taste.Vector, error) {
	query := `SELECT taste_vector FROM users WHERE id = $1`

	var raw []byte
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read taste vector: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var axes map[string]float64
	if err := json.Unmarshal(raw, &axes); err != nil {
		return nil, fmt.Errorf("failed to decode taste vector for user %d: %w", userID, err)
	}

	v := taste.FromMap(axes)
	return &v, nil
}

// SetTasteVector replaces the user's taste vector wholesale.
func (s *PostgresSource) SetTasteVector(ctx context.Context, userID int64, v taste.Vector) error {
	raw, err := json.Marshal(v.ToMap())
	if err != nil {
		return fmt.Errorf("failed to encode taste vector: %w", err)
	}

	query := `UPDATE users SET taste_vector = $2, updated_at = NOW() WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, userID, raw)
	if err != nil {
		return fmt.Errorf("failed to store taste vector: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no user with id %d", userID)
	}

	return nil
}

// GetReviewerSignals assembles reviewer signals for the candidate shops
// in a single query. The eligible CTE keeps only reviewers whose own
// list size meets the floor, so ineligible rows never leave the
// database.
func (s *PostgresSource) GetReviewerSignals(ctx context.Context, shopIDs []int64, eligibilityFloor int) (map[int64][]match.ReviewerSignal, error) {
	if len(shopIDs) == 0 {
		return map[int64][]match.ReviewerSignal{}, nil
	}

	query := `
		WITH eligible AS (
			SELECT owner_id, COUNT(*) AS total_cnt
			FROM users_ranking
			GROUP BY owner_id
			HAVING COUNT(*) >= $2
		)
		SELECT ur.shop_id, ur.owner_id, ur.rank, ur.satisfaction_tier, e.total_cnt, u.taste_vector
		FROM users_ranking ur
		JOIN eligible e ON e.owner_id = ur.owner_id
		JOIN users u ON u.id = ur.owner_id
		WHERE ur.shop_id = ANY($1)
		ORDER BY ur.shop_id, ur.owner_id
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(shopIDs), eligibilityFloor)
	if err != nil {
		return nil, fmt.Errorf("failed to gather reviewer signals: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warn("failed to close rows", "error", err)
		}
	}()

	result := make(map[int64][]match.ReviewerSignal)
	for rows.Next() {
		var (
			shopID     int64
			reviewerID int64
			rank       int
			tier       ranklist.Tier
			total      int
			rawVector  []byte
		)
		if err := rows.Scan(&shopID, &reviewerID, &rank, &tier, &total, &rawVector); err != nil {
			return nil, fmt.Errorf("failed to scan reviewer signal: %w", err)
		}

		signal := match.ReviewerSignal{
			ReviewerID:       reviewerID,
			RankPosition:     rank,
			TotalRankedCount: total,
			Tier:             &tier,
		}

		if len(rawVector) > 0 {
			var axes map[string]float64
			if err := json.Unmarshal(rawVector, &axes); err != nil {
				// A malformed vector drops that reviewer's weight but
				// must not fail the whole gather.
				s.logger.Warn("skipping malformed taste vector",
					"reviewer_id", reviewerID,
					"error", err,
				)
			} else {
				v := taste.FromMap(axes)
				signal.Taste = &v
			}
		}

		result[shopID] = append(result[shopID], signal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviewer signals: %w", err)
	}

	return result, nil
}

// GetOwnRankingRow returns the user's own ranking position for a shop,
// or (nil, nil) when the user has not ranked it.
func (s *PostgresSource) GetOwnRankingRow(ctx context.Context, userID, shopID int64) (*match.OwnRankingRow, error) {
	query := `
		SELECT ur.rank, ur.satisfaction_tier,
		       (SELECT COUNT(*) FROM users_ranking WHERE owner_id = $1) AS total
		FROM users_ranking ur
		WHERE ur.owner_id = $1 AND ur.shop_id = $2
	`
	var row match.OwnRankingRow
	err := s.db.QueryRowContext(ctx, query, userID, shopID).Scan(&row.Rank, &row.Tier, &row.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read own ranking row: %w", err)
	}

	return &row, nil
}

package repositories

import (
	"context"
	"fmt"

	"github.com/crosswalk-data/crosswalk-engine/pkg/database"
	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
)

// ConfirmationRepository provides data access for the confirmation ledger.
type ConfirmationRepository interface {
	// Insert records a confirmation. Returns false when the
	// (store, term, row, scope) tuple already exists.
	Insert(ctx context.Context, record *models.ConfirmationRecord) (bool, error)
	// CountDistinctUserConfirmers counts how many distinct user scopes have
	// confirmed the same term-to-row mapping. Only user-scoped confirmations
	// count toward promotion.
	CountDistinctUserConfirmers(ctx context.Context, storeName, term string, rowID int64) (int, error)
	DeleteByStore(ctx context.Context, storeName string) error
}

type confirmationRepository struct {
	db *database.DB
}

// NewConfirmationRepository creates a new ConfirmationRepository.
func NewConfirmationRepository(db *database.DB) ConfirmationRepository {
	return &confirmationRepository{db: db}
}

var _ ConfirmationRepository = (*confirmationRepository)(nil)

func (r *confirmationRepository) Insert(ctx context.Context, record *models.ConfirmationRecord) (bool, error) {
	query := `
		INSERT INTO confirmations (
			store_name, term, row_id, scope, confirmed_by, confirmed_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (store_name, term, row_id, scope) DO NOTHING
		RETURNING id, confirmed_at`

	rows, err := r.db.Query(ctx, query,
		record.StoreName,
		record.Term,
		record.RowID,
		record.Scope.String(),
		record.ConfirmedBy,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert confirmation: %w", err)
	}
	defer rows.Close()

	// DO NOTHING yields no row on conflict.
	if !rows.Next() {
		return false, rows.Err()
	}
	if err := rows.Scan(&record.ID, &record.ConfirmedAt); err != nil {
		return false, fmt.Errorf("failed to scan confirmation: %w", err)
	}
	rows.Close()

	return true, rows.Err()
}

func (r *confirmationRepository) CountDistinctUserConfirmers(ctx context.Context, storeName, term string, rowID int64) (int, error) {
	query := `
		SELECT COUNT(DISTINCT scope)
		FROM confirmations
		WHERE store_name = $1 AND term = $2 AND row_id = $3 AND scope LIKE 'user:%'`

	var count int
	err := r.db.QueryRow(ctx, query, storeName, term, rowID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count confirmers: %w", err)
	}

	return count, nil
}

func (r *confirmationRepository) DeleteByStore(ctx context.Context, storeName string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM confirmations WHERE store_name = $1`, storeName); err != nil {
		return fmt.Errorf("failed to delete confirmations: %w", err)
	}
	return nil
}

package repositories

import (
	"context"
	"fmt"

	"github.com/crosswalk-data/crosswalk-engine/pkg/database"
	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
)

// LearnedTermRepository provides data access for learned search terms so
// they survive restarts and refresh generation swaps.
type LearnedTermRepository interface {
	// InsertIfAbsent persists a learned term. Returns false when the
	// (store, term, row, scope) tuple already exists.
	InsertIfAbsent(ctx context.Context, storeName string, term *models.SearchTerm) (bool, error)
	ListByStore(ctx context.Context, storeName string) ([]*models.SearchTerm, error)
	// SystemTermExists reports whether the term-to-row mapping already has a
	// system-scoped entry, in any casing of the term.
	SystemTermExists(ctx context.Context, storeName, term string, rowID int64) (bool, error)
	// DeleteAboveRowID prunes terms orphaned by a refresh that shrank the
	// store below their row ids.
	DeleteAboveRowID(ctx context.Context, storeName string, maxRowID int64) error
	DeleteByStore(ctx context.Context, storeName string) error
}

type learnedTermRepository struct {
	db *database.DB
}

// NewLearnedTermRepository creates a new LearnedTermRepository.
func NewLearnedTermRepository(db *database.DB) LearnedTermRepository {
	return &learnedTermRepository{db: db}
}

var _ LearnedTermRepository = (*learnedTermRepository)(nil)

func (r *learnedTermRepository) InsertIfAbsent(ctx context.Context, storeName string, term *models.SearchTerm) (bool, error) {
	query := `
		INSERT INTO learned_terms (store_name, term, row_id, scope, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (store_name, term, row_id, scope) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, storeName, term.Term, term.RowID, term.Scope.String())
	if err != nil {
		return false, fmt.Errorf("failed to insert learned term: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *learnedTermRepository) ListByStore(ctx context.Context, storeName string) ([]*models.SearchTerm, error) {
	query := `
		SELECT term, row_id, scope
		FROM learned_terms
		WHERE store_name = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, storeName)
	if err != nil {
		return nil, fmt.Errorf("failed to list learned terms: %w", err)
	}
	defer rows.Close()

	var terms []*models.SearchTerm
	for rows.Next() {
		var term models.SearchTerm
		var scopeStr string
		if err := rows.Scan(&term.Term, &term.RowID, &scopeStr); err != nil {
			return nil, fmt.Errorf("failed to scan learned term: %w", err)
		}
		scope, err := models.ParseScope(scopeStr)
		if err != nil {
			return nil, fmt.Errorf("stored learned term has bad scope %q: %w", scopeStr, err)
		}
		term.Scope = scope
		term.SourceColumn = models.SourceColumnLearned
		terms = append(terms, &term)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating learned terms: %w", err)
	}

	return terms, nil
}

func (r *learnedTermRepository) SystemTermExists(ctx context.Context, storeName, term string, rowID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM learned_terms
			WHERE store_name = $1 AND LOWER(term) = LOWER($2) AND row_id = $3 AND scope = 'system'
		)`

	var exists bool
	err := r.db.QueryRow(ctx, query, storeName, term, rowID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check system term: %w", err)
	}

	return exists, nil
}

func (r *learnedTermRepository) DeleteAboveRowID(ctx context.Context, storeName string, maxRowID int64) error {
	query := `DELETE FROM learned_terms WHERE store_name = $1 AND row_id > $2`
	if _, err := r.db.Exec(ctx, query, storeName, maxRowID); err != nil {
		return fmt.Errorf("failed to prune orphaned learned terms: %w", err)
	}
	return nil
}

func (r *learnedTermRepository) DeleteByStore(ctx context.Context, storeName string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM learned_terms WHERE store_name = $1`, storeName); err != nil {
		return fmt.Errorf("failed to delete learned terms: %w", err)
	}
	return nil
}

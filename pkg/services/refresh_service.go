package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crosswalk-data/crosswalk-engine/pkg/adapters/datasource"
	"github.com/crosswalk-data/crosswalk-engine/pkg/apperrors"
	"github.com/crosswalk-data/crosswalk-engine/pkg/config"
	"github.com/crosswalk-data/crosswalk-engine/pkg/crypto"
	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
	"github.com/crosswalk-data/crosswalk-engine/pkg/repositories"
	"github.com/crosswalk-data/crosswalk-engine/pkg/retry"
	"github.com/crosswalk-data/crosswalk-engine/pkg/store"
)

// RefreshService pulls canonical rows from a store's source, derives
// primary search terms, and swaps the result in as a new generation.
type RefreshService interface {
	// Refresh runs one refresh for the named store. Returns
	// apperrors.ErrRefreshInProgress when one is already running.
	Refresh(ctx context.Context, name string) (*models.RefreshReport, error)

	// HydrateAll registers and refreshes every configured store. Failures
	// are logged per store; the store stays registered and empty.
	HydrateAll(ctx context.Context)
}

// SourceQueryError marks a refresh failure as originating from the external
// source rather than the engine itself.
type SourceQueryError struct {
	StoreName string
	Phase     string // "connect", "query", "columns"
	Err       error
}

func (e *SourceQueryError) Error() string {
	return fmt.Sprintf("source %s failed for store %q: %v", e.Phase, e.StoreName, e.Err)
}

func (e *SourceQueryError) Unwrap() error { return e.Err }

type refreshService struct {
	configRepo  repositories.ValueStoreConfigRepository
	learnedRepo repositories.LearnedTermRepository
	registry    store.Registry
	factory     datasource.ExecutorFactory
	encryptor   *crypto.CredentialEncryptor
	cfg         *config.RefreshConfig
	logger      *zap.Logger
}

// NewRefreshService creates a new RefreshService.
func NewRefreshService(
	configRepo repositories.ValueStoreConfigRepository,
	learnedRepo repositories.LearnedTermRepository,
	registry store.Registry,
	factory datasource.ExecutorFactory,
	encryptor *crypto.CredentialEncryptor,
	cfg *config.RefreshConfig,
	logger *zap.Logger,
) RefreshService {
	return &refreshService{
		configRepo:  configRepo,
		learnedRepo: learnedRepo,
		registry:    registry,
		factory:     factory,
		encryptor:   encryptor,
		cfg:         cfg,
		logger:      logger.Named("refresh-service"),
	}
}

var _ RefreshService = (*refreshService)(nil)

func (s *refreshService) Refresh(ctx context.Context, name string) (*models.RefreshReport, error) {
	cfg, err := s.configRepo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	st := s.registry.GetOrCreate(name)
	if !st.TryBeginRefresh() {
		return nil, fmt.Errorf("store %q: %w", name, apperrors.ErrRefreshInProgress)
	}
	defer st.EndRefresh()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	report := &models.RefreshReport{
		StoreName: name,
		StartedAt: time.Now(),
	}

	result, err := s.querySource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	for _, col := range cfg.MatchColumns {
		if !result.HasColumn(col) {
			return nil, &SourceQueryError{
				StoreName: name,
				Phase:     "columns",
				Err:       fmt.Errorf("match column %q not in source query projection %v", col, result.Columns),
			}
		}
	}

	rows, terms := buildGeneration(result, cfg.MatchColumns)

	// Learned terms outlive the generation swap; reload them so the overlay
	// matches what is durable, then prune entries whose rows vanished.
	learned, err := s.learnedRepo.ListByStore(ctx, name)
	if err != nil {
		return nil, err
	}
	maxRowID := int64(len(rows))
	kept := make([]models.SearchTerm, 0, len(learned))
	for _, t := range learned {
		if t.RowID >= 1 && t.RowID <= maxRowID {
			kept = append(kept, *t)
		}
	}
	if len(kept) < len(learned) {
		if err := s.learnedRepo.DeleteAboveRowID(ctx, name, maxRowID); err != nil {
			s.logger.Warn("Failed to prune orphaned learned terms",
				zap.String("store", name), zap.Error(err))
		}
	}

	report.RowsLoaded = len(rows)
	report.SearchTermsCreated = len(terms)
	report.CompletedAt = time.Now()

	st.Swap(rows, terms, kept, report)

	s.logger.Info("Store refreshed",
		zap.String("store", name),
		zap.Uint64("generation", report.Generation),
		zap.Int("rows", report.RowsLoaded),
		zap.Int("search_terms", report.SearchTermsCreated),
		zap.Int("learned_terms", len(kept)),
		zap.Duration("duration", report.CompletedAt.Sub(report.StartedAt)))

	return report, nil
}

func (s *refreshService) querySource(ctx context.Context, cfg *models.ValueStoreConfig) (*datasource.QueryResult, error) {
	connection := make(map[string]any, len(cfg.SourceConnection))
	for k, v := range cfg.SourceConnection {
		connection[k] = v
	}
	for _, key := range encryptedConnectionKeys {
		encrypted, ok := connection[key].(string)
		if !ok || encrypted == "" {
			continue
		}
		plaintext, err := s.encryptor.Decrypt(encrypted)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt source credentials: %w", err)
		}
		connection[key] = plaintext
	}

	srcType, _ := connection["type"].(string)
	executor, err := s.factory.NewSourceExecutor(ctx, srcType, connection)
	if err != nil {
		return nil, &SourceQueryError{StoreName: cfg.Name, Phase: "connect", Err: err}
	}
	defer executor.Close()

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = s.cfg.MaxRetries

	var result *datasource.QueryResult
	err = retry.DoIfRetryable(ctx, retryCfg, func() error {
		r, queryErr := executor.Query(ctx, cfg.SourceQuery)
		if queryErr != nil {
			return queryErr
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, &SourceQueryError{StoreName: cfg.Name, Phase: "query", Err: err}
	}

	return result, nil
}

// buildGeneration assigns row ids 1..N in source order and derives one
// primary search term per non-empty match column value, first column first.
func buildGeneration(result *datasource.QueryResult, matchColumns []string) ([]models.ValueRow, []models.SearchTerm) {
	rows := make([]models.ValueRow, 0, len(result.Rows))
	terms := make([]models.SearchTerm, 0, len(result.Rows)*len(matchColumns))

	for i, source := range result.Rows {
		rowID := int64(i + 1)
		rows = append(rows, models.ValueRow{RowID: rowID, Columns: source})

		for _, col := range matchColumns {
			value, ok := source[col]
			if !ok || value == nil {
				continue
			}
			text := fmt.Sprintf("%v", value)
			if text == "" {
				continue
			}
			terms = append(terms, models.SearchTerm{
				Term:         text,
				RowID:        rowID,
				SourceColumn: col,
				Scope:        models.Primary,
			})
		}
	}

	return rows, terms
}

func (s *refreshService) HydrateAll(ctx context.Context) {
	configs, err := s.configRepo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list stores for hydration", zap.Error(err))
		return
	}

	for _, cfg := range configs {
		s.registry.GetOrCreate(cfg.Name)
		if _, err := s.Refresh(ctx, cfg.Name); err != nil {
			s.logger.Warn("Startup refresh failed; store stays empty until next refresh",
				zap.String("store", cfg.Name), zap.Error(err))
		}
	}
}

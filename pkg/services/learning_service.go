package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/crosswalk-data/crosswalk-engine/pkg/apperrors"
	"github.com/crosswalk-data/crosswalk-engine/pkg/config"
	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
	"github.com/crosswalk-data/crosswalk-engine/pkg/repositories"
	enginesql "github.com/crosswalk-data/crosswalk-engine/pkg/sql"
	"github.com/crosswalk-data/crosswalk-engine/pkg/store"
)

// LearningService records confirmed term-to-row mappings and promotes
// mappings with enough distinct user confirmations to system scope.
type LearningService interface {
	Confirm(ctx context.Context, identity models.Identity, req *models.ConfirmRequest) error
}

// promotionStripes bounds lock contention across unrelated mappings while
// still serializing concurrent confirmations of the same mapping.
const promotionStripes = 64

type learningService struct {
	confirmationRepo repositories.ConfirmationRepository
	learnedRepo      repositories.LearnedTermRepository
	registry         store.Registry
	cfg              *config.ResolverConfig
	logger           *zap.Logger

	mu [promotionStripes]sync.Mutex
}

// NewLearningService creates a new LearningService.
func NewLearningService(
	confirmationRepo repositories.ConfirmationRepository,
	learnedRepo repositories.LearnedTermRepository,
	registry store.Registry,
	cfg *config.ResolverConfig,
	logger *zap.Logger,
) LearningService {
	return &learningService{
		confirmationRepo: confirmationRepo,
		learnedRepo:      learnedRepo,
		registry:         registry,
		cfg:              cfg,
		logger:           logger.Named("learning-service"),
	}
}

var _ LearningService = (*learningService)(nil)

func (s *learningService) Confirm(ctx context.Context, identity models.Identity, req *models.ConfirmRequest) error {
	term := strings.TrimSpace(req.Term)
	if term == "" {
		return fmt.Errorf("term is required")
	}
	if req.StoreName == "" {
		return fmt.Errorf("store_name is required")
	}
	if req.ValueRowID < 1 {
		return fmt.Errorf("value_row_id must be positive")
	}
	if injection := enginesql.CheckTermForInjection(term); injection != nil {
		return fmt.Errorf("term rejected: SQL injection pattern detected (fingerprint %s)", injection.Fingerprint)
	}

	scope, err := s.resolveScope(identity, req.Scope)
	if err != nil {
		return err
	}

	st, ok := s.registry.Get(req.StoreName)
	if !ok {
		return fmt.Errorf("store %q: %w", req.StoreName, apperrors.ErrNotFound)
	}
	if !st.RowExists(req.ValueRowID) {
		return fmt.Errorf("row %d in store %q: %w", req.ValueRowID, req.StoreName, apperrors.ErrNotFound)
	}

	stripe := s.stripeFor(req.StoreName, term, req.ValueRowID)
	stripe.Lock()
	defer stripe.Unlock()

	record := &models.ConfirmationRecord{
		StoreName:   req.StoreName,
		Term:        term,
		RowID:       req.ValueRowID,
		Scope:       scope,
		ConfirmedBy: identity.User,
	}
	inserted, err := s.confirmationRepo.Insert(ctx, record)
	if err != nil {
		return err
	}

	searchTerm := models.SearchTerm{
		Term:         term,
		RowID:        req.ValueRowID,
		SourceColumn: models.SourceColumnLearned,
		Scope:        scope,
	}
	if _, err := s.learnedRepo.InsertIfAbsent(ctx, req.StoreName, &searchTerm); err != nil {
		return err
	}
	if err := st.AddLearned(searchTerm); err != nil {
		return err
	}

	if inserted {
		s.logger.Info("Match confirmed",
			zap.String("store", req.StoreName),
			zap.String("term", term),
			zap.Int64("row_id", req.ValueRowID),
			zap.String("scope", scope.String()))
	}

	return s.maybePromote(ctx, st, req.StoreName, term, req.ValueRowID)
}

// resolveScope validates the requested scope against the caller's identity.
// Missing scope defaults to the caller's user scope. Callers may not write
// system or primary terms directly, nor terms for other users or teams they
// are not members of.
func (s *learningService) resolveScope(identity models.Identity, requested string) (models.Scope, error) {
	if identity.IsAnonymous() {
		return models.Scope{}, fmt.Errorf("%w: anonymous callers cannot confirm matches", apperrors.ErrInvalidScope)
	}

	if requested == "" {
		return models.UserScope(identity.User), nil
	}

	scope, err := models.ParseScope(requested)
	if err != nil {
		return models.Scope{}, err
	}

	switch scope.Kind {
	case models.ScopeUser:
		if scope.ID != identity.User {
			return models.Scope{}, fmt.Errorf("%w: cannot confirm for another user", apperrors.ErrInvalidScope)
		}
	case models.ScopeTeam:
		if !identity.MemberOf(scope.ID) {
			return models.Scope{}, fmt.Errorf("%w: caller is not a member of team %q", apperrors.ErrInvalidScope, scope.ID)
		}
	default:
		return models.Scope{}, fmt.Errorf("%w: %s scope is written only by the engine", apperrors.ErrInvalidScope, scope)
	}

	return scope, nil
}

// maybePromote creates a system-scoped term once enough distinct users have
// confirmed the same mapping. The stripe lock plus the unique index on
// learned_terms keep the promotion single-shot under concurrency.
func (s *learningService) maybePromote(ctx context.Context, st *store.Store, storeName, term string, rowID int64) error {
	count, err := s.confirmationRepo.CountDistinctUserConfirmers(ctx, storeName, term, rowID)
	if err != nil {
		return err
	}
	if count < s.cfg.PromotionThreshold {
		return nil
	}

	exists, err := s.learnedRepo.SystemTermExists(ctx, storeName, term, rowID)
	if err != nil {
		return err
	}
	if exists || st.HasSystemTerm(term, rowID) {
		return nil
	}

	systemTerm := models.SearchTerm{
		Term:         term,
		RowID:        rowID,
		SourceColumn: models.SourceColumnLearned,
		Scope:        models.System,
	}
	inserted, err := s.learnedRepo.InsertIfAbsent(ctx, storeName, &systemTerm)
	if err != nil {
		return err
	}
	if !inserted {
		// Lost the race to another instance; the mapping is already promoted.
		return nil
	}
	if err := st.AddLearned(systemTerm); err != nil {
		return err
	}

	s.logger.Info("Term promoted to system scope",
		zap.String("store", storeName),
		zap.String("term", term),
		zap.Int64("row_id", rowID),
		zap.Int("confirmers", count))

	return nil
}

func (s *learningService) stripeFor(storeName, term string, rowID int64) *sync.Mutex {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%s|%d", storeName, strings.ToLower(term), rowID)
	return &s.mu[h.Sum32()%promotionStripes]
}

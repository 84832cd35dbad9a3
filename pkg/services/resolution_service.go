package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/crosswalk-data/crosswalk-engine/pkg/apperrors"
	"github.com/crosswalk-data/crosswalk-engine/pkg/config"
	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
	"github.com/crosswalk-data/crosswalk-engine/pkg/repositories"
	"github.com/crosswalk-data/crosswalk-engine/pkg/store"
)

// ResolutionService answers bulk free-text resolution requests against the
// registered value stores.
type ResolutionService interface {
	Resolve(ctx context.Context, identity models.Identity, req *models.ResolveRequest) (*models.ResolveResponse, error)
}

type resolutionService struct {
	configRepo repositories.ValueStoreConfigRepository
	registry   store.Registry
	cfg        *config.ResolverConfig
	logger     *zap.Logger
}

// NewResolutionService creates a new ResolutionService.
func NewResolutionService(
	configRepo repositories.ValueStoreConfigRepository,
	registry store.Registry,
	cfg *config.ResolverConfig,
	logger *zap.Logger,
) ResolutionService {
	return &resolutionService{
		configRepo: configRepo,
		registry:   registry,
		cfg:        cfg,
		logger:     logger.Named("resolution-service"),
	}
}

var _ ResolutionService = (*resolutionService)(nil)

func (s *resolutionService) Resolve(ctx context.Context, identity models.Identity, req *models.ResolveRequest) (*models.ResolveResponse, error) {
	if len(req.Queries) == 0 {
		return nil, fmt.Errorf("at least one query is required")
	}
	if len(req.Queries) > s.cfg.MaxQueriesPerRequest {
		return nil, fmt.Errorf("%w: %d queries exceeds limit of %d",
			apperrors.ErrTooManyQueries, len(req.Queries), s.cfg.MaxQueriesPerRequest)
	}

	maxCandidates := req.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = s.cfg.DefaultMaxCandidates
	}
	minScore := req.MinScore
	if minScore <= 0 {
		minScore = s.cfg.DefaultMinScore
	}

	if s.cfg.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ResolveTimeout)
		defer cancel()
	}

	configs, err := s.configRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	resp := &models.ResolveResponse{Results: make([]models.ResolveResult, 0, len(req.Queries))}

	for _, query := range req.Queries {
		result := models.ResolveResult{
			Term:         query.Term,
			ByEntityType: make(map[string]models.EntityTypeResult, len(query.EntityTypes)),
		}

		for _, entityType := range query.EntityTypes {
			candidates, err := s.resolveOne(ctx, query, entityType, req.Domain, identity, minScore, configs)
			if err != nil {
				return nil, err
			}
			if len(candidates) > maxCandidates {
				candidates = candidates[:maxCandidates]
			}
			result.ByEntityType[entityType] = models.EntityTypeResult{Candidates: candidates}
		}

		resp.Results = append(resp.Results, result)
	}

	return resp, nil
}

// resolveOne runs a single (term, entity type) lookup across all stores that
// declare the entity type, merging and re-ranking candidates. A query that
// matches no store yields empty candidates, never an error; queries in a
// batch are independent. The deadline is checked before scoring each store,
// since scoring a large store can dominate the request budget.
func (s *resolutionService) resolveOne(
	ctx context.Context,
	query models.ResolveQuery,
	entityType string,
	domain string,
	identity models.Identity,
	minScore float64,
	configs []*models.ValueStoreConfig,
) ([]models.Candidate, error) {
	if strings.TrimSpace(query.Term) == "" {
		return []models.Candidate{}, nil
	}

	merged := make([]models.Candidate, 0)
	for _, cfg := range configs {
		if domain != "" && !strings.EqualFold(cfg.Domain, domain) {
			continue
		}
		if !servesEntityType(cfg.EntityTypes, entityType) {
			continue
		}
		st, ok := s.registry.Get(cfg.Name)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("resolve against store %q in scoring phase: %w", cfg.Name, err)
		}
		merged = append(merged, st.Resolve(query.Term, identity, minScore, query.ExcludeValues)...)
	}

	store.SortCandidates(identity, merged)
	return merged, nil
}

// servesEntityType matches case-insensitively and treats singular and plural
// forms as the same type ("Vendors" finds stores declaring "Vendor").
func servesEntityType(declared []string, requested string) bool {
	want := inflection.Singular(strings.ToLower(requested))
	for _, d := range declared {
		if inflection.Singular(strings.ToLower(d)) == want {
			return true
		}
	}
	return false
}

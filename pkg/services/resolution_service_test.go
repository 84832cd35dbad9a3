package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crosswalk-data/crosswalk-engine/pkg/apperrors"
	"github.com/crosswalk-data/crosswalk-engine/pkg/config"
	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
	"github.com/crosswalk-data/crosswalk-engine/pkg/store"
)

func seedStore(t *testing.T, registry store.Registry, name string, names ...string) {
	t.Helper()

	rows := make([]models.ValueRow, 0, len(names))
	terms := make([]models.SearchTerm, 0, len(names))
	for i, n := range names {
		rowID := int64(i + 1)
		rows = append(rows, models.ValueRow{RowID: rowID, Columns: map[string]any{"name": n}})
		terms = append(terms, models.SearchTerm{
			Term: n, RowID: rowID, SourceColumn: "name", Scope: models.Primary,
		})
	}

	st := registry.GetOrCreate(name)
	require.True(t, st.TryBeginRefresh())
	st.Swap(rows, terms, nil, nil)
	st.EndRefresh()
}

func newResolutionFixture(t *testing.T) (ResolutionService, store.Registry) {
	t.Helper()

	registry := store.NewRegistry()
	seedStore(t, registry, "vendors", "NIKE, INC.", "ADIDAS AG")
	seedStore(t, registry, "customers", "NIKE RETAIL STORES", "MORGAN STANLEY")

	configs := newMockConfigRepo(
		&models.ValueStoreConfig{
			Name: "vendors", Domain: "procurement",
			EntityTypes: []string{"Vendor", "Supplier"},
		},
		&models.ValueStoreConfig{
			Name: "customers", Domain: "sales",
			EntityTypes: []string{"Customer"},
		},
		// Configured but never hydrated: must be skipped, not an error.
		&models.ValueStoreConfig{
			Name: "ghost", Domain: "procurement",
			EntityTypes: []string{"Vendor"},
		},
	)

	cfg := &config.ResolverConfig{
		DefaultMaxCandidates: 10,
		DefaultMinScore:      0.5,
		MaxQueriesPerRequest: 3,
	}

	return NewResolutionService(configs, registry, cfg, zap.NewNop()), registry
}

func TestResolve_MatchesByEntityType(t *testing.T) {
	service, _ := newResolutionFixture(t)

	resp, err := service.Resolve(context.Background(), models.Identity{User: "alice"}, &models.ResolveRequest{
		Queries: []models.ResolveQuery{
			{Term: "Nike", EntityTypes: []string{"Vendor", "Customer"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	result := resp.Results[0]
	assert.Equal(t, "Nike", result.Term)

	vendors := result.ByEntityType["Vendor"].Candidates
	require.NotEmpty(t, vendors)
	assert.Equal(t, "NIKE, INC.", vendors[0].Row["name"])

	customers := result.ByEntityType["Customer"].Candidates
	require.NotEmpty(t, customers)
	assert.Equal(t, "NIKE RETAIL STORES", customers[0].Row["name"])
}

func TestResolve_EntityTypePluralAndCase(t *testing.T) {
	service, _ := newResolutionFixture(t)

	// "vendors" must reach the store declaring "Vendor".
	resp, err := service.Resolve(context.Background(), models.Identity{}, &models.ResolveRequest{
		Queries: []models.ResolveQuery{{Term: "Adidas", EntityTypes: []string{"vendors"}}},
	})
	require.NoError(t, err)

	cands := resp.Results[0].ByEntityType["vendors"].Candidates
	require.NotEmpty(t, cands)
	assert.Equal(t, "ADIDAS AG", cands[0].Row["name"])
}

func TestResolve_DomainFilter(t *testing.T) {
	service, _ := newResolutionFixture(t)

	resp, err := service.Resolve(context.Background(), models.Identity{}, &models.ResolveRequest{
		Domain: "sales",
		Queries: []models.ResolveQuery{
			{Term: "Nike", EntityTypes: []string{"Vendor", "Customer"}},
		},
	})
	require.NoError(t, err)

	// The vendors store is out of domain; only the customers store answers.
	assert.Empty(t, resp.Results[0].ByEntityType["Vendor"].Candidates)
	assert.NotEmpty(t, resp.Results[0].ByEntityType["Customer"].Candidates)
}

func TestResolve_UnknownEntityTypeYieldsEmpty(t *testing.T) {
	service, _ := newResolutionFixture(t)

	resp, err := service.Resolve(context.Background(), models.Identity{}, &models.ResolveRequest{
		Queries: []models.ResolveQuery{{Term: "Nike", EntityTypes: []string{"Starship"}}},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Results[0].ByEntityType["Starship"].Candidates)
}

func TestResolve_EmptyTermYieldsEmpty(t *testing.T) {
	service, _ := newResolutionFixture(t)

	resp, err := service.Resolve(context.Background(), models.Identity{}, &models.ResolveRequest{
		Queries: []models.ResolveQuery{{Term: "   ", EntityTypes: []string{"Vendor"}}},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Results[0].ByEntityType["Vendor"].Candidates)
}

func TestResolve_QueryCap(t *testing.T) {
	service, _ := newResolutionFixture(t)

	queries := make([]models.ResolveQuery, 4)
	for i := range queries {
		queries[i] = models.ResolveQuery{Term: "Nike", EntityTypes: []string{"Vendor"}}
	}

	_, err := service.Resolve(context.Background(), models.Identity{}, &models.ResolveRequest{Queries: queries})
	assert.ErrorIs(t, err, apperrors.ErrTooManyQueries)
}

func TestResolve_NoQueries(t *testing.T) {
	service, _ := newResolutionFixture(t)

	_, err := service.Resolve(context.Background(), models.Identity{}, &models.ResolveRequest{})
	assert.Error(t, err)
}

func TestResolve_MaxCandidatesTruncates(t *testing.T) {
	service, _ := newResolutionFixture(t)

	resp, err := service.Resolve(context.Background(), models.Identity{}, &models.ResolveRequest{
		Queries: []models.ResolveQuery{
			// Weak score floor so both vendor rows match.
			{Term: "ag", EntityTypes: []string{"Vendor"}},
		},
		MaxCandidates: 1,
		MinScore:      0.1,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(resp.Results[0].ByEntityType["Vendor"].Candidates), 1)
}

func TestResolve_ExcludeValues(t *testing.T) {
	service, _ := newResolutionFixture(t)

	resp, err := service.Resolve(context.Background(), models.Identity{}, &models.ResolveRequest{
		Queries: []models.ResolveQuery{
			{Term: "Nike", EntityTypes: []string{"Vendor"}, ExcludeValues: []string{"NIKE, INC."}},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Results[0].ByEntityType["Vendor"].Candidates)
}

func TestResolve_LearnedScopePrecedence(t *testing.T) {
	service, registry := newResolutionFixture(t)

	st, ok := registry.Get("vendors")
	require.True(t, ok)
	require.NoError(t, st.AddLearned(models.SearchTerm{
		Term: "The Swoosh Company", RowID: 2, SourceColumn: models.SourceColumnLearned,
		Scope: models.System,
	}))
	require.NoError(t, st.AddLearned(models.SearchTerm{
		Term: "The Swoosh Company", RowID: 1, SourceColumn: models.SourceColumnLearned,
		Scope: models.UserScope("alice"),
	}))

	resp, err := service.Resolve(context.Background(), models.Identity{User: "alice"}, &models.ResolveRequest{
		Queries: []models.ResolveQuery{
			{Term: "The Swoosh Company", EntityTypes: []string{"Vendor"}},
		},
	})
	require.NoError(t, err)

	cands := resp.Results[0].ByEntityType["Vendor"].Candidates
	require.Len(t, cands, 2)
	assert.Equal(t, "user:alice", cands[0].Source)
	assert.Equal(t, "system", cands[1].Source)
}

func TestResolve_StopsAtDeadline(t *testing.T) {
	service, _ := newResolutionFixture(t)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := service.Resolve(ctx, models.Identity{}, &models.ResolveRequest{
		Queries: []models.ResolveQuery{{Term: "Nike", EntityTypes: []string{"Vendor"}}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), `"vendors"`)
	assert.Contains(t, err.Error(), "scoring")
}

func TestResolve_BatchOrderPreserved(t *testing.T) {
	service, _ := newResolutionFixture(t)

	resp, err := service.Resolve(context.Background(), models.Identity{}, &models.ResolveRequest{
		Queries: []models.ResolveQuery{
			{Term: "Adidas", EntityTypes: []string{"Vendor"}},
			{Term: "Morgan Stanley", EntityTypes: []string{"Customer"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Adidas", resp.Results[0].Term)
	assert.Equal(t, "Morgan Stanley", resp.Results[1].Term)
}

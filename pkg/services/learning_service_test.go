package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crosswalk-data/crosswalk-engine/pkg/apperrors"
	"github.com/crosswalk-data/crosswalk-engine/pkg/config"
	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
	"github.com/crosswalk-data/crosswalk-engine/pkg/store"
)

type learningFixture struct {
	service       LearningService
	confirmations *mockConfirmationRepo
	learned       *mockLearnedRepo
	registry      store.Registry
	store         *store.Store
}

func newLearningFixture(t *testing.T, threshold int) *learningFixture {
	t.Helper()

	registry := store.NewRegistry()
	st := registry.GetOrCreate("companies")
	require.True(t, st.TryBeginRefresh())
	st.Swap(
		[]models.ValueRow{
			{RowID: 1, Columns: map[string]any{"legal_name": "NIKE, INC."}},
			{RowID: 2, Columns: map[string]any{"legal_name": "ADIDAS AG"}},
		},
		[]models.SearchTerm{
			{Term: "NIKE, INC.", RowID: 1, SourceColumn: "legal_name", Scope: models.Primary},
			{Term: "ADIDAS AG", RowID: 2, SourceColumn: "legal_name", Scope: models.Primary},
		},
		nil, nil,
	)
	st.EndRefresh()

	confirmations := &mockConfirmationRepo{}
	learned := newMockLearnedRepo()
	cfg := &config.ResolverConfig{PromotionThreshold: threshold}

	return &learningFixture{
		service:       NewLearningService(confirmations, learned, registry, cfg, zap.NewNop()),
		confirmations: confirmations,
		learned:       learned,
		registry:      registry,
		store:         st,
	}
}

func confirmAs(user string) models.Identity {
	return models.Identity{User: user, Teams: []string{"finance"}}
}

func TestLearningConfirm_DefaultsToCallerScope(t *testing.T) {
	f := newLearningFixture(t, 3)
	ctx := context.Background()

	err := f.service.Confirm(ctx, confirmAs("alice"), &models.ConfirmRequest{
		Term: "Swoosh", ValueRowID: 1, StoreName: "companies",
	})
	require.NoError(t, err)

	require.Len(t, f.confirmations.records, 1)
	assert.Equal(t, models.UserScope("alice"), f.confirmations.records[0].Scope)
	assert.Equal(t, "alice", f.confirmations.records[0].ConfirmedBy)

	// The learned term takes effect immediately for the confirmer.
	cands := f.store.Resolve("Swoosh", confirmAs("alice"), 0.5, nil)
	require.Len(t, cands, 1)
	assert.Equal(t, "user:alice", cands[0].Source)
	assert.Equal(t, int64(1), cands[0].RowID)
}

func TestLearningConfirm_Idempotent(t *testing.T) {
	f := newLearningFixture(t, 3)
	ctx := context.Background()

	req := &models.ConfirmRequest{Term: "Swoosh", ValueRowID: 1, StoreName: "companies"}
	require.NoError(t, f.service.Confirm(ctx, confirmAs("alice"), req))
	require.NoError(t, f.service.Confirm(ctx, confirmAs("alice"), req))

	assert.Len(t, f.confirmations.records, 1)
	assert.Equal(t, 1, f.store.Status().LearnedTerms)
}

func TestLearningConfirm_Validation(t *testing.T) {
	f := newLearningFixture(t, 3)
	ctx := context.Background()
	alice := confirmAs("alice")

	tests := []struct {
		name string
		req  *models.ConfirmRequest
	}{
		{"empty term", &models.ConfirmRequest{Term: "  ", ValueRowID: 1, StoreName: "companies"}},
		{"missing store", &models.ConfirmRequest{Term: "Swoosh", ValueRowID: 1}},
		{"bad row id", &models.ConfirmRequest{Term: "Swoosh", ValueRowID: 0, StoreName: "companies"}},
		{"injection term", &models.ConfirmRequest{Term: "x' OR '1'='1", ValueRowID: 1, StoreName: "companies"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, f.service.Confirm(ctx, alice, tt.req))
		})
	}
	assert.Empty(t, f.confirmations.records)
}

func TestLearningConfirm_UnknownStoreAndRow(t *testing.T) {
	f := newLearningFixture(t, 3)
	ctx := context.Background()
	alice := confirmAs("alice")

	err := f.service.Confirm(ctx, alice, &models.ConfirmRequest{
		Term: "Swoosh", ValueRowID: 1, StoreName: "missing",
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = f.service.Confirm(ctx, alice, &models.ConfirmRequest{
		Term: "Swoosh", ValueRowID: 99, StoreName: "companies",
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLearningConfirm_ScopeRules(t *testing.T) {
	f := newLearningFixture(t, 3)
	ctx := context.Background()

	base := models.ConfirmRequest{Term: "Swoosh", ValueRowID: 1, StoreName: "companies"}

	// Anonymous callers cannot confirm at all.
	anonReq := base
	err := f.service.Confirm(ctx, models.Identity{}, &anonReq)
	assert.ErrorIs(t, err, apperrors.ErrInvalidScope)

	alice := confirmAs("alice")
	for _, scope := range []string{"user:bob", "team:sales", "system", "primary", "bogus"} {
		req := base
		req.Scope = scope
		err := f.service.Confirm(ctx, alice, &req)
		assert.ErrorIs(t, err, apperrors.ErrInvalidScope, "scope %q", scope)
	}

	// Own user scope and member team scope are accepted.
	ownReq := base
	ownReq.Scope = "user:alice"
	assert.NoError(t, f.service.Confirm(ctx, alice, &ownReq))

	teamReq := base
	teamReq.Scope = "team:finance"
	assert.NoError(t, f.service.Confirm(ctx, alice, &teamReq))
}

func TestLearningConfirm_PromotionAtThreshold(t *testing.T) {
	f := newLearningFixture(t, 3)
	ctx := context.Background()

	req := &models.ConfirmRequest{Term: "Swoosh", ValueRowID: 1, StoreName: "companies"}

	require.NoError(t, f.service.Confirm(ctx, confirmAs("alice"), req))
	require.NoError(t, f.service.Confirm(ctx, confirmAs("bob"), req))
	assert.False(t, f.store.HasSystemTerm("Swoosh", 1), "two confirmers must not promote")

	require.NoError(t, f.service.Confirm(ctx, confirmAs("carol"), req))
	assert.True(t, f.store.HasSystemTerm("Swoosh", 1))

	exists, err := f.learned.SystemTermExists(ctx, "companies", "Swoosh", 1)
	require.NoError(t, err)
	assert.True(t, exists)

	// Everyone benefits from the promoted term, not just confirmers.
	cands := f.store.Resolve("Swoosh", models.Identity{User: "dave"}, 0.5, nil)
	require.Len(t, cands, 1)
	assert.Equal(t, "system", cands[0].Source)
}

func TestLearningConfirm_TeamConfirmationsDoNotPromote(t *testing.T) {
	f := newLearningFixture(t, 2)
	ctx := context.Background()

	req := models.ConfirmRequest{Term: "Swoosh", ValueRowID: 1, StoreName: "companies", Scope: "team:finance"}

	// Three confirmations, but all in team scope: only distinct user scopes
	// count toward the consensus threshold.
	for _, user := range []string{"alice", "bob", "carol"} {
		r := req
		require.NoError(t, f.service.Confirm(ctx, confirmAs(user), &r))
	}

	assert.False(t, f.store.HasSystemTerm("Swoosh", 1))
}

func TestLearningConfirm_PromotionIsSingleShot(t *testing.T) {
	f := newLearningFixture(t, 2)
	ctx := context.Background()

	req := &models.ConfirmRequest{Term: "Swoosh", ValueRowID: 1, StoreName: "companies"}
	require.NoError(t, f.service.Confirm(ctx, confirmAs("alice"), req))
	require.NoError(t, f.service.Confirm(ctx, confirmAs("bob"), req))
	require.True(t, f.store.HasSystemTerm("Swoosh", 1))

	// Further confirmations past the threshold stay no-ops.
	require.NoError(t, f.service.Confirm(ctx, confirmAs("carol"), req))
	assert.Equal(t, 4, f.store.Status().LearnedTerms) // 3 user terms + 1 system term
}

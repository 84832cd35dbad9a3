package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/crosswalk-data/crosswalk-engine/pkg/adapters/datasource"
	"github.com/crosswalk-data/crosswalk-engine/pkg/apperrors"
	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
)

type mockConfigRepo struct {
	mu      sync.Mutex
	configs map[string]*models.ValueStoreConfig

	upsertErr error
	listErr   error
}

func newMockConfigRepo(configs ...*models.ValueStoreConfig) *mockConfigRepo {
	m := &mockConfigRepo{configs: make(map[string]*models.ValueStoreConfig)}
	for _, c := range configs {
		m.configs[c.Name] = c
	}
	return m
}

func (m *mockConfigRepo) Upsert(_ context.Context, config *models.ValueStoreConfig) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[config.Name] = config
	return nil
}

func (m *mockConfigRepo) GetByName(_ context.Context, name string) (*models.ValueStoreConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[name]
	if !ok {
		return nil, fmt.Errorf("value store config %q: %w", name, apperrors.ErrNotFound)
	}
	return c, nil
}

func (m *mockConfigRepo) List(_ context.Context) ([]*models.ValueStoreConfig, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.ValueStoreConfig, 0, len(m.configs))
	for _, c := range m.configs {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockConfigRepo) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[name]; !ok {
		return fmt.Errorf("value store config %q: %w", name, apperrors.ErrNotFound)
	}
	delete(m.configs, name)
	return nil
}

type mockConfirmationRepo struct {
	mu      sync.Mutex
	records []*models.ConfirmationRecord

	insertErr error
}

func (m *mockConfirmationRepo) Insert(_ context.Context, record *models.ConfirmationRecord) (bool, error) {
	if m.insertErr != nil {
		return false, m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.StoreName == record.StoreName && r.Term == record.Term &&
			r.RowID == record.RowID && r.Scope == record.Scope {
			return false, nil
		}
	}
	copied := *record
	m.records = append(m.records, &copied)
	return true, nil
}

func (m *mockConfirmationRepo) CountDistinctUserConfirmers(_ context.Context, storeName, term string, rowID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	for _, r := range m.records {
		if r.StoreName == storeName && r.Term == term && r.RowID == rowID &&
			r.Scope.Kind == models.ScopeUser {
			seen[r.Scope.ID] = true
		}
	}
	return len(seen), nil
}

func (m *mockConfirmationRepo) DeleteByStore(_ context.Context, storeName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	for _, r := range m.records {
		if r.StoreName != storeName {
			kept = append(kept, r)
		}
	}
	m.records = kept
	return nil
}

type learnedKey struct {
	store string
	term  string
	rowID int64
	scope string
}

type mockLearnedRepo struct {
	mu    sync.Mutex
	terms map[learnedKey]models.SearchTerm

	deletedAbove map[string]int64
}

func newMockLearnedRepo() *mockLearnedRepo {
	return &mockLearnedRepo{
		terms:        make(map[learnedKey]models.SearchTerm),
		deletedAbove: make(map[string]int64),
	}
}

func (m *mockLearnedRepo) InsertIfAbsent(_ context.Context, storeName string, term *models.SearchTerm) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := learnedKey{storeName, term.Term, term.RowID, term.Scope.String()}
	if _, ok := m.terms[key]; ok {
		return false, nil
	}
	m.terms[key] = *term
	return true, nil
}

func (m *mockLearnedRepo) ListByStore(_ context.Context, storeName string) ([]*models.SearchTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SearchTerm
	for key, t := range m.terms {
		if key.store == storeName {
			copied := t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockLearnedRepo) SystemTermExists(_ context.Context, storeName, term string, rowID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.terms {
		if key.store == storeName && strings.EqualFold(key.term, term) &&
			key.rowID == rowID && key.scope == "system" {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLearnedRepo) DeleteAboveRowID(_ context.Context, storeName string, maxRowID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedAbove[storeName] = maxRowID
	for key := range m.terms {
		if key.store == storeName && key.rowID > maxRowID {
			delete(m.terms, key)
		}
	}
	return nil
}

func (m *mockLearnedRepo) DeleteByStore(_ context.Context, storeName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.terms {
		if key.store == storeName {
			delete(m.terms, key)
		}
	}
	return nil
}

type mockExecutor struct {
	result   *datasource.QueryResult
	queryErr error

	queries []string
	closed  bool
}

func (m *mockExecutor) TestConnection(_ context.Context) error { return nil }

func (m *mockExecutor) Query(_ context.Context, sqlQuery string) (*datasource.QueryResult, error) {
	m.queries = append(m.queries, sqlQuery)
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.result, nil
}

func (m *mockExecutor) Close() error {
	m.closed = true
	return nil
}

type mockFactory struct {
	executor   *mockExecutor
	connectErr error

	gotType   string
	gotConfig map[string]any
}

func (m *mockFactory) NewSourceExecutor(_ context.Context, srcType string, config map[string]any) (datasource.SourceExecutor, error) {
	m.gotType = srcType
	m.gotConfig = config
	if m.connectErr != nil {
		return nil, m.connectErr
	}
	return m.executor, nil
}

func (m *mockFactory) ListTypes() []datasource.AdapterInfo { return nil }

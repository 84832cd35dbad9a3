// Package store holds the per-store data plane: the canonical row table,
// the derived search-term table with its token prefilter index, and the
// learned-term overlay. Primary data is replaced wholesale by generation
// swap; readers bind to a generation at the start of a query and are never
// blocked by a refresh.
package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/crosswalk-data/crosswalk-engine/pkg/apperrors"
	"github.com/crosswalk-data/crosswalk-engine/pkg/matching"
	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
)

// indexedTerm is a search term with its pre-tokenized form.
type indexedTerm struct {
	term         string
	rowID        int64
	sourceColumn string
	scope        models.Scope
	tokens       []string
}

// generation is one immutable snapshot of primary data. Row IDs are
// ordinals into rows, assigned 1..N at build time.
type generation struct {
	seq   uint64
	rows  []models.ValueRow
	terms []indexedTerm
	index *tokenIndex
}

// Store is the live data holding area for one value store.
type Store struct {
	name string

	// refreshMu serializes refreshes; it is never held while serving reads.
	refreshMu sync.Mutex

	gen atomic.Pointer[generation]

	// learnedMu guards the learned-term overlay (system/team/user scopes),
	// which survives generation swaps and grows on confirmations.
	learnedMu    sync.RWMutex
	learned      []indexedTerm
	learnedIndex *tokenIndex

	lastReport atomic.Pointer[models.RefreshReport]
}

// NewStore creates an empty, queryable store at generation zero.
func NewStore(name string) *Store {
	s := &Store{name: name}
	s.gen.Store(&generation{index: buildTokenIndex(nil)})
	s.learnedIndex = buildTokenIndex(nil)
	return s
}

func (s *Store) Name() string { return s.name }

// TryBeginRefresh claims the store's refresh slot. A second concurrent
// refresh must not run against the same generation counter.
func (s *Store) TryBeginRefresh() bool { return s.refreshMu.TryLock() }

// EndRefresh releases the refresh slot.
func (s *Store) EndRefresh() { s.refreshMu.Unlock() }

// Swap atomically replaces the primary generation and the learned overlay.
// Callers must hold the refresh slot. Readers in flight keep the previous
// generation; no reader observes a partially built one.
func (s *Store) Swap(rows []models.ValueRow, primary []models.SearchTerm, learned []models.SearchTerm, report *models.RefreshReport) {
	prev := s.gen.Load()
	next := &generation{
		seq:   prev.seq + 1,
		rows:  rows,
		terms: make([]indexedTerm, 0, len(primary)),
	}
	for _, t := range primary {
		next.terms = append(next.terms, newIndexedTerm(t))
	}
	next.index = buildTokenIndex(next.terms)

	overlay := make([]indexedTerm, 0, len(learned))
	for _, t := range learned {
		overlay = append(overlay, newIndexedTerm(t))
	}
	overlayIndex := buildTokenIndex(overlay)

	s.learnedMu.Lock()
	s.learned = overlay
	s.learnedIndex = overlayIndex
	s.gen.Store(next)
	s.learnedMu.Unlock()

	if report != nil {
		report.Generation = next.seq
		s.lastReport.Store(report)
	}
}

func newIndexedTerm(t models.SearchTerm) indexedTerm {
	return indexedTerm{
		term:         t.Term,
		rowID:        t.RowID,
		sourceColumn: t.SourceColumn,
		scope:        t.Scope,
		tokens:       matching.Tokenize(t.Term),
	}
}

// Generation returns the current generation sequence number.
func (s *Store) Generation() uint64 { return s.gen.Load().seq }

// RowExists reports whether rowID is present in the current generation.
func (s *Store) RowExists(rowID int64) bool {
	g := s.gen.Load()
	return rowID >= 1 && rowID <= int64(len(g.rows))
}

// AddLearned appends a learned search term to the overlay. The referenced
// row must exist in the current generation. Duplicate (term, row, scope)
// tuples are a no-op.
func (s *Store) AddLearned(t models.SearchTerm) error {
	if !t.Scope.IsLearned() {
		return fmt.Errorf("%w: cannot add %s-scoped term to overlay", apperrors.ErrInvalidScope, t.Scope)
	}
	if !s.RowExists(t.RowID) {
		return fmt.Errorf("row %d in store %q: %w", t.RowID, s.name, apperrors.ErrNotFound)
	}

	s.learnedMu.Lock()
	defer s.learnedMu.Unlock()
	for _, existing := range s.learned {
		if existing.rowID == t.RowID && existing.scope == t.Scope && strings.EqualFold(existing.term, t.Term) {
			return nil
		}
	}
	s.learned = append(s.learned, newIndexedTerm(t))
	// Overlays stay small relative to primary data; rebuilding the index
	// on append keeps lookups allocation-free on the read path.
	s.learnedIndex = buildTokenIndex(s.learned)
	return nil
}

// HasSystemTerm reports whether a system-scoped term already exists for
// (term, rowID).
func (s *Store) HasSystemTerm(term string, rowID int64) bool {
	s.learnedMu.RLock()
	defer s.learnedMu.RUnlock()
	for _, t := range s.learned {
		if t.scope.Kind == models.ScopeSystem && t.rowID == rowID && strings.EqualFold(t.term, term) {
			return true
		}
	}
	return false
}

// Resolve scores the input term against this store's search terms and
// returns candidates at or above minScore, deduplicated by row (keeping
// the highest-ranked occurrence) and ordered by scope priority then score.
// An empty prefilter result returns zero candidates without invoking the
// scoring kernel.
func (s *Store) Resolve(input string, identity models.Identity, minScore float64, excludeValues []string) []models.Candidate {
	g := s.gen.Load()

	queryTokens := matching.Tokenize(input)
	if len(queryTokens) == 0 || len(g.rows) == 0 {
		return nil
	}

	primaryHits := make(map[int32]struct{})
	for _, tok := range queryTokens {
		g.index.lookup(tok, primaryHits)
	}

	s.learnedMu.RLock()
	overlay := s.learned
	overlayIndex := s.learnedIndex
	s.learnedMu.RUnlock()

	learnedHits := make(map[int32]struct{})
	for _, tok := range queryTokens {
		overlayIndex.lookup(tok, learnedHits)
	}

	best := make(map[int64]models.Candidate)

	score := func(t indexedTerm) {
		if !identity.CanSee(t.scope) {
			return
		}
		if t.rowID < 1 || t.rowID > int64(len(g.rows)) {
			// Learned term orphaned by a swap that raced this read.
			return
		}
		if excluded(t.term, excludeValues) {
			return
		}
		res := matching.Score(t.term, input)
		if res.Composite < minScore || res.Strategy == "" {
			return
		}
		cand := models.Candidate{
			Row:           g.rows[t.rowID-1].Columns,
			RowID:         t.rowID,
			MatchedTerm:   t.term,
			MatchedColumn: t.sourceColumn,
			Score:         res.Composite,
			Strategy:      res.Strategy,
			Source:        t.scope.String(),
		}
		prev, ok := best[t.rowID]
		if !ok || candidateLess(identity, prev, cand) {
			best[t.rowID] = cand
		}
	}

	for ord := range primaryHits {
		score(g.terms[ord])
	}
	for ord := range learnedHits {
		score(overlay[ord])
	}

	out := make([]models.Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	SortCandidates(identity, out)
	return out
}

// SortCandidates orders candidates by scope priority (relative to the
// caller) descending, then composite score descending, with row ID as a
// stable tiebreak.
func SortCandidates(identity models.Identity, cands []models.Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return candidateLess(identity, cands[j], cands[i])
	})
}

// candidateLess reports whether a ranks strictly below b.
func candidateLess(identity models.Identity, a, b models.Candidate) bool {
	ap, bp := sourcePriority(identity, a.Source), sourcePriority(identity, b.Source)
	if ap != bp {
		return ap < bp
	}
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.RowID > b.RowID
}

func sourcePriority(identity models.Identity, source string) int {
	scope, err := models.ParseScope(source)
	if err != nil {
		return -1
	}
	return identity.ScopePriority(scope)
}

func excluded(term string, excludeValues []string) bool {
	for _, ex := range excludeValues {
		if strings.EqualFold(term, ex) {
			return true
		}
	}
	return false
}

// Status returns the admin view of the store's live data.
func (s *Store) Status() models.StoreStatus {
	g := s.gen.Load()
	s.learnedMu.RLock()
	learnedCount := len(s.learned)
	s.learnedMu.RUnlock()

	return models.StoreStatus{
		Name:         s.name,
		Generation:   g.seq,
		Rows:         len(g.rows),
		PrimaryTerms: len(g.terms),
		LearnedTerms: learnedCount,
		LastRefresh:  s.lastReport.Load(),
	}
}

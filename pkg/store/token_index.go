package store

import (
	"sort"
	"strings"

	"github.com/crosswalk-data/crosswalk-engine/pkg/matching"
)

// tokenIndex is a sorted inverted index from normalized word tokens to term
// ordinals. Lookup range-scans indexed tokens that share a short leading
// prefix with the query token, and also matches indexed tokens that are
// proper prefixes of it. Together with indexing each multi-word term's
// acronym, this keeps the prefilter sound for the prefix, words, and
// initials strategy families, and gives in-word typo matches ("Adids" for
// "ADIDAS AG") a path to the levenshtein and phonetics strategies. A typo
// inside the first scanPrefixLen characters of every query token is out of
// reach; that is a documented boundary of the prefilter.
type tokenIndex struct {
	tokens   []string
	postings [][]int32
}

// scanPrefixLen is the shared-prefix length used by the lookup range scan.
// Shorter widens recall at the cost of scoring more candidates.
const scanPrefixLen = 3

func buildTokenIndex(terms []indexedTerm) *tokenIndex {
	byToken := make(map[string][]int32)
	for i, t := range terms {
		ord := int32(i)
		seen := make(map[string]struct{}, len(t.tokens)+1)
		for _, tok := range t.tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			byToken[tok] = append(byToken[tok], ord)
		}
		// Index the acronym so acronym-style queries ("MS") reach
		// multi-word terms ("MORGAN STANLEY") through the prefilter.
		if len(t.tokens) >= 2 {
			acr := matching.Initials(t.tokens)
			if _, ok := seen[acr]; !ok {
				byToken[acr] = append(byToken[acr], ord)
			}
		}
	}

	ix := &tokenIndex{
		tokens:   make([]string, 0, len(byToken)),
		postings: make([][]int32, 0, len(byToken)),
	}
	for tok := range byToken {
		ix.tokens = append(ix.tokens, tok)
	}
	sort.Strings(ix.tokens)
	for _, tok := range ix.tokens {
		ix.postings = append(ix.postings, byToken[tok])
	}
	return ix
}

// lookup adds the ordinals of all terms with a token reachable from q to
// hits: tokens sharing q's leading scanPrefixLen characters, and tokens
// that are proper prefixes of q.
func (ix *tokenIndex) lookup(q string, hits map[int32]struct{}) {
	if q == "" || len(ix.tokens) == 0 {
		return
	}

	// Indexed tokens sharing a leading prefix with q. Scanning on the
	// truncated prefix is a superset of scanning on q itself.
	scan := q
	if len(scan) > scanPrefixLen {
		scan = scan[:scanPrefixLen]
	}
	start := sort.SearchStrings(ix.tokens, scan)
	for i := start; i < len(ix.tokens) && strings.HasPrefix(ix.tokens[i], scan); i++ {
		for _, ord := range ix.postings[i] {
			hits[ord] = struct{}{}
		}
	}

	// Indexed tokens that are proper prefixes of q.
	for l := 1; l < len(q); l++ {
		pos := sort.SearchStrings(ix.tokens, q[:l])
		if pos < len(ix.tokens) && ix.tokens[pos] == q[:l] {
			for _, ord := range ix.postings[pos] {
				hits[ord] = struct{}{}
			}
		}
	}
}

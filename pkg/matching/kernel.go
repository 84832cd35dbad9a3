// Package matching implements the fuzzy-matching scoring kernel: pure
// functions that score a (candidate term, input term) pair across six
// strategies and blend them into a composite confidence. The kernel does no
// I/O and holds no state; the resolution engine calls it after the token
// prefilter has bounded the candidate set.
package matching

// Strategy names reported to callers.
const (
	StrategyPrefix          = "prefix"
	StrategyLevenshtein     = "levenshtein"
	StrategyInitials        = "initials"
	StrategyReverseInitials = "reverse_initials"
	StrategyWords           = "words"
	StrategyPhonetics       = "phonetics"
)

// strategyWeights pick the winning strategy for caller transparency. The
// weight scales the raw score only for the argmax; it never changes the
// composite.
var strategyWeights = map[string]float64{
	StrategyPrefix:          500,
	StrategyLevenshtein:     400,
	StrategyInitials:        400,
	StrategyReverseInitials: 300,
	StrategyWords:           200,
	StrategyPhonetics:       100,
}

// corroborationBonus is the bounded boost added for non-winning signals.
// It must never let corroboration alone exceed a strong single match.
const corroborationBonus = 0.15

// levenshteinMaxDistanceRatio disqualifies edit-distance matches whose
// distance exceeds this fraction of the longer string.
const levenshteinMaxDistanceRatio = 0.4

// Result is the outcome of scoring one candidate against one input.
type Result struct {
	// Composite is the blended confidence in [0,1].
	Composite float64
	// Strategy is the winning strategy: the one maximizing weight x raw.
	Strategy string
	// Raw holds the per-strategy raw scores in [0,1].
	Raw map[string]float64
}

// Score computes the six raw strategy scores for (candidate, input) and the
// composite: the best raw score plus a bounded bonus for the sum of the
// other non-zero raw scores.
func Score(candidate, input string) Result {
	cTokens := Tokenize(candidate)
	iTokens := Tokenize(input)

	raw := map[string]float64{
		StrategyPrefix:          scorePrefix(cTokens, iTokens),
		StrategyLevenshtein:     scoreLevenshtein(cTokens, iTokens),
		StrategyInitials:        scoreInitials(cTokens, iTokens),
		StrategyReverseInitials: scoreReverseInitials(cTokens, iTokens),
		StrategyWords:           scoreWords(cTokens, iTokens),
		StrategyPhonetics:       scorePhonetics(cTokens, iTokens),
	}

	var best, others float64
	for _, s := range raw {
		if s > best {
			best = s
		}
	}
	if best == 0 {
		return Result{Raw: raw}
	}
	subtracted := false
	for _, s := range raw {
		if s == 0 {
			continue
		}
		if s == best && !subtracted {
			subtracted = true
			continue
		}
		others += s
	}
	if others > 1.0 {
		others = 1.0
	}

	composite := best + corroborationBonus*others
	if composite > 1.0 {
		composite = 1.0
	}

	return Result{
		Composite: composite,
		Strategy:  winningStrategy(raw),
		Raw:       raw,
	}
}

// winningStrategy returns the strategy with the highest weight x raw score.
// Ties break toward the heavier weight so the report is deterministic.
func winningStrategy(raw map[string]float64) string {
	ordered := []string{
		StrategyPrefix,
		StrategyLevenshtein,
		StrategyInitials,
		StrategyReverseInitials,
		StrategyWords,
		StrategyPhonetics,
	}
	var winner string
	var bestWeighted float64
	for _, name := range ordered {
		w := strategyWeights[name] * raw[name]
		if w > bestWeighted {
			bestWeighted = w
			winner = name
		}
	}
	return winner
}

// scorePrefix scores 1.0 when the normalized strings are equal, and a
// near-1.0 score scaled down by the length-ratio difference when one is a
// prefix of the other.
func scorePrefix(cTokens, iTokens []string) float64 {
	c := joinTokens(cTokens)
	in := joinTokens(iTokens)
	if c == "" || in == "" {
		return 0
	}
	shorter, longer := c, in
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if longer[:len(shorter)] != shorter {
		return 0
	}
	ratio := float64(len(shorter)) / float64(len(longer))
	return 0.9 + 0.1*ratio
}

// scoreLevenshtein takes the best edit-distance score over the whole
// candidate string and its individual tokens, so a one-edit typo against a
// single word of a multi-word candidate still scores ("adids" vs
// "ADIDAS AG"). Distances beyond 40% of the longer string score zero.
func scoreLevenshtein(cTokens, iTokens []string) float64 {
	c := joinTokens(cTokens)
	in := joinTokens(iTokens)
	if c == "" || in == "" {
		return 0
	}

	best := levenshteinPair(c, in)
	for _, ct := range cTokens {
		if s := levenshteinPair(ct, in); s > best {
			best = s
		}
	}
	for _, it := range iTokens {
		if s := levenshteinPair(c, it); s > best {
			best = s
		}
	}
	return best
}

func levenshteinPair(a, b string) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	d := levenshteinDistance(a, b)
	if float64(d) > levenshteinMaxDistanceRatio*float64(longest) {
		return 0
	}
	return 1.0 - float64(d)/float64(longest)
}

// scoreInitials measures position-weighted overlap between the candidate's
// word initials and the input, for acronym-style inputs ("MS" against
// "Morgan Stanley"). Earlier positions weigh more. Inputs longer than the
// acronym are not acronym-style and score zero.
func scoreInitials(cTokens, iTokens []string) float64 {
	if len(cTokens) < 2 {
		return 0
	}
	acr := Initials(cTokens)
	in := concatTokens(iTokens)
	if in == "" || len(in) > len(acr) {
		return 0
	}

	var matched, total float64
	for i := 0; i < len(acr); i++ {
		w := 1.0 / float64(i+1)
		total += w
		if i < len(in) && acr[i] == in[i] {
			matched += w
		}
	}
	return matched / total
}

// scoreReverseInitials treats the input as an acronym and scores how many
// of its letters appear, in order, in the sequence of candidate word
// initials.
func scoreReverseInitials(cTokens, iTokens []string) float64 {
	if len(cTokens) < 2 {
		return 0
	}
	acr := Initials(cTokens)
	in := concatTokens(iTokens)
	if in == "" {
		return 0
	}

	matched := 0
	pos := 0
	for i := 0; i < len(in) && pos < len(acr); i++ {
		for j := pos; j < len(acr); j++ {
			if acr[j] == in[i] {
				matched++
				pos = j + 1
				break
			}
		}
	}

	denom := len(in)
	if len(acr) > denom {
		denom = len(acr)
	}
	return float64(matched) / float64(denom)
}

// scoreWords is the Jaccard similarity of the two token sets.
func scoreWords(cTokens, iTokens []string) float64 {
	if len(cTokens) == 0 || len(iTokens) == 0 {
		return 0
	}
	cSet := make(map[string]struct{}, len(cTokens))
	for _, t := range cTokens {
		cSet[t] = struct{}{}
	}
	iSet := make(map[string]struct{}, len(iTokens))
	for _, t := range iTokens {
		iSet[t] = struct{}{}
	}

	intersection := 0
	for t := range iSet {
		if _, ok := cSet[t]; ok {
			intersection++
		}
	}
	union := len(cSet) + len(iSet) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// scorePhonetics compares Soundex codes word by word in position and
// scores the matched fraction, so "adids" matches the first word of
// "adidas ag" at 0.5 rather than claiming full phonetic equality.
func scorePhonetics(cTokens, iTokens []string) float64 {
	if len(cTokens) == 0 || len(iTokens) == 0 {
		return 0
	}
	n := len(cTokens)
	if len(iTokens) < n {
		n = len(iTokens)
	}

	matched := 0
	for i := 0; i < n; i++ {
		cc := soundexCode(cTokens[i])
		ic := soundexCode(iTokens[i])
		if cc != "" && cc == ic {
			matched++
		}
	}

	denom := len(cTokens)
	if len(iTokens) > denom {
		denom = len(iTokens)
	}
	return float64(matched) / float64(denom)
}

func joinTokens(tokens []string) string {
	switch len(tokens) {
	case 0:
		return ""
	case 1:
		return tokens[0]
	}
	n := len(tokens) - 1
	for _, t := range tokens {
		n += len(t)
	}
	b := make([]byte, 0, n)
	for i, t := range tokens {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, t...)
	}
	return string(b)
}

func concatTokens(tokens []string) string {
	var n int
	for _, t := range tokens {
		n += len(t)
	}
	b := make([]byte, 0, n)
	for _, t := range tokens {
		b = append(b, t...)
	}
	return string(b)
}

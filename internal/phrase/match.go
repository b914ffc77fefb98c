// Package phrase implements fuzzy matching of short spoken phrases against a
// rolling transcript, using Jaro-Winkler string similarity for ranked
// comparison.
//
// Transcribed speech rarely contains a phrase verbatim: engines split, join,
// and respell words ("hey glasses" arrives as "a glasses" or "heyglasses").
// A Matcher therefore scores a transcript against every configured variant
// of the phrase using several comparison strategies and reports the best:
//
//  1. Exact containment: the variant appears verbatim in the transcript.
//  2. Full-string similarity on the trailing window of the transcript.
//  3. Space-stripped similarity (handles engines that merge words).
//  4. Sliding token-window similarity (the phrase buried mid-transcript).
//  5. Word-order-insensitive similarity (sorted tokens compared).
//
// The matcher is pure string computation with no I/O, safe for concurrent
// use after construction.
package phrase

import (
	"errors"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// DefaultThreshold is the minimum similarity score at which a phrase is
// considered present in a transcript.
const DefaultThreshold = 0.78

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithThreshold sets the minimum similarity score required for Match to
// report a hit. Default: 0.78.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.threshold = threshold
	}
}

// Matcher scores transcripts against a set of phrase variants. It is
// read-only after construction.
type Matcher struct {
	variants  []string // normalized, lowercased
	threshold float64
}

// NewMatcher returns a Matcher for the given phrase variants. Variants are
// alternative spellings or known near-miss transcriptions of the same phrase
// (e.g. "hey glasses", "a glasses", "hey glassis"). At least one non-empty
// variant is required.
func NewMatcher(variants []string, opts ...Option) (*Matcher, error) {
	m := &Matcher{threshold: DefaultThreshold}
	for _, v := range variants {
		if n := Normalize(v); n != "" {
			m.variants = append(m.variants, n)
		}
	}
	if len(m.variants) == 0 {
		return nil, errors.New("phrase: at least one non-empty variant is required")
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Threshold returns the configured minimum similarity score.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match reports whether the transcript contains the phrase, along with the
// best similarity score across all variants and strategies. When matched is
// false the score is still the best one observed.
func (m *Matcher) Match(transcript string) (score float64, matched bool) {
	score = m.BestScore(transcript)
	return score, score >= m.threshold
}

// BestScore returns the highest similarity score between the transcript and
// any variant, across all comparison strategies.
func (m *Matcher) BestScore(transcript string) float64 {
	text := Normalize(transcript)
	if text == "" {
		return 0
	}
	textTokens := strings.Fields(text)

	var best float64
	for _, variant := range m.variants {
		if s := scoreVariant(text, textTokens, variant); s > best {
			best = s
			if best >= 1.0 {
				break
			}
		}
	}
	return best
}

// scoreVariant computes the best score between the transcript and one
// variant using all strategies.
func scoreVariant(text string, textTokens []string, variant string) float64 {
	// Strategy 1: exact containment, on token boundaries so that a word
	// merely embedding the variant ("abandoned" vs "done") does not count.
	if strings.Contains(" "+text+" ", " "+variant+" ") {
		return 1.0
	}

	variantTokens := strings.Fields(variant)

	// Strategy 2: full string. For long transcripts only the trailing
	// window matters — the phrase was spoken most recently.
	window := trailingWindow(textTokens, len(variantTokens)+2)
	score := matchr.JaroWinkler(strings.Join(window, " "), variant, false)

	// Strategy 3: space-stripped comparison.
	concat := strings.Join(window, "")
	variantConcat := strings.Join(variantTokens, "")
	if s := matchr.JaroWinkler(concat, variantConcat, false); s > score {
		score = s
	}

	// Strategy 4: sliding token window of the variant's length.
	n := len(variantTokens)
	for i := 0; i+n <= len(textTokens); i++ {
		candidate := strings.Join(textTokens[i:i+n], " ")
		if s := matchr.JaroWinkler(candidate, variant, false); s > score {
			score = s
		}
	}

	// Strategy 5: word-order-insensitive comparison on the trailing window.
	if n > 1 {
		sortedWindow := sortedJoin(trailingWindow(textTokens, n))
		sortedVariant := sortedJoin(variantTokens)
		if s := matchr.JaroWinkler(sortedWindow, sortedVariant, false); s > score {
			score = s
		}
	}

	return score
}

// Consume removes the best-matching occurrence of the phrase from the
// transcript exactly once and returns the cleaned text. When no window of
// the transcript meets the threshold, the transcript is returned unchanged
// and consumed is false.
func (m *Matcher) Consume(transcript string) (cleaned string, consumed bool) {
	tokens := strings.Fields(transcript)
	if len(tokens) == 0 {
		return transcript, false
	}

	normTokens := make([]string, len(tokens))
	for i, t := range tokens {
		normTokens[i] = normalizeToken(t)
	}

	bestStart, bestLen := -1, 0
	var bestScore float64

	for _, variant := range m.variants {
		n := len(strings.Fields(variant))
		if n == 0 || n > len(tokens) {
			continue
		}
		for i := 0; i+n <= len(tokens); i++ {
			candidate := strings.Join(normTokens[i:i+n], " ")
			s := matchr.JaroWinkler(candidate, variant, false)
			if strings.Join(normTokens[i:i+n], "") == strings.ReplaceAll(variant, " ", "") {
				s = 1.0
			}
			if s > bestScore {
				bestScore = s
				bestStart, bestLen = i, n
			}
		}
	}

	if bestScore < m.threshold || bestStart < 0 {
		return transcript, false
	}

	remaining := make([]string, 0, len(tokens)-bestLen)
	remaining = append(remaining, tokens[:bestStart]...)
	remaining = append(remaining, tokens[bestStart+bestLen:]...)
	return strings.Join(remaining, " "), true
}

// ─── helpers ────────────────────────────────────────────────────────────────

// Normalize lowercases text and strips punctuation from token edges,
// collapsing whitespace. Transcription engines emit punctuation and casing
// that must not affect matching.
func Normalize(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		if t := normalizeToken(f); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, " ")
}

// normalizeToken lowercases a token and trims non-alphanumeric runes from
// both edges. Interior characters (apostrophes, hyphens) are kept.
func normalizeToken(tok string) string {
	return strings.TrimFunc(strings.ToLower(tok), func(r rune) bool {
		return !isAlnum(r)
	})
}

func isAlnum(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z'
}

// trailingWindow returns the last n tokens (or all of them when fewer).
func trailingWindow(tokens []string, n int) []string {
	if len(tokens) <= n {
		return tokens
	}
	return tokens[len(tokens)-n:]
}

// sortedJoin joins tokens in sorted order, making the comparison
// insensitive to word order.
func sortedJoin(tokens []string) string {
	sorted := make([]string, len(tokens))
	copy(sorted, tokens)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}

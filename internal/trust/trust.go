// Package trust tracks how a persona feels about the user: a bounded trust
// score nudged by keywords in each message and the mood derived from it.
package trust

import (
	"strings"
	"unicode"

	"github.com/deldesir/gateway/internal/domain"
)

// Score deltas
const (
	HostileDelta = -5
	PoliteDelta  = 2
)

// Mood thresholds
const (
	AnnoyedBelow = 30
	HappyFrom    = 70
)

var (
	DefaultHostileKeywords = []string{"stupid", "idiot", "hate", "useless", "fuck"}
	DefaultPoliteKeywords  = []string{"thanks", "thank you", "merci", "great", "love"}
)

// Engine applies keyword rules. It is immutable and safe for concurrent use.
type Engine struct {
	hostile []string
	polite  []string
}

// NewEngine builds an engine; nil keyword lists fall back to the defaults.
func NewEngine(hostile, polite []string) *Engine {
	if hostile == nil {
		hostile = DefaultHostileKeywords
	}
	if polite == nil {
		polite = DefaultPoliteKeywords
	}
	return &Engine{
		hostile: normalizeAll(hostile),
		polite:  normalizeAll(polite),
	}
}

// UpdateTrust returns the score after reading text. A hostile keyword wins
// over a polite one in the same message.
func (e *Engine) UpdateTrust(score int, text string) int {
	padded := " " + normalize(text) + " "

	switch {
	case containsAny(padded, e.hostile):
		score += HostileDelta
	case containsAny(padded, e.polite):
		score += PoliteDelta
	}
	return clamp(score)
}

// DeriveMood maps a trust score onto a mood.
func DeriveMood(score int) domain.Mood {
	switch {
	case score < AnnoyedBelow:
		return domain.MoodAnnoyed
	case score >= HappyFrom:
		return domain.MoodHappy
	default:
		return domain.MoodNeutral
	}
}

// MergeDossier returns current overlaid with facts. Neither input is modified.
func MergeDossier(current, facts map[string]string) map[string]string {
	merged := make(map[string]string, len(current)+len(facts))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range facts {
		merged[k] = v
	}
	return merged
}

func clamp(score int) int {
	if score < domain.MinTrustScore {
		return domain.MinTrustScore
	}
	if score > domain.MaxTrustScore {
		return domain.MaxTrustScore
	}
	return score
}

// containsAny matches whole words and phrases; text must already be padded.
// Inflections are not matched, so "hated" does not count as "hate".
func containsAny(padded string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(padded, " "+kw+" ") {
			return true
		}
	}
	return false
}

// normalize lowercases text and collapses every run of non letters/digits
// into a single space.
func normalize(text string) string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

func normalizeAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if n := normalize(kw); n != "" {
			out = append(out, n)
		}
	}
	return out
}

package analysis

import (
	"sort"
	"strings"
	"unicode"
)

// MaxPhrases caps the common phrase list.
const MaxPhrases = 10

var stopWords = buildStopWords(
	"a", "an", "the", "is", "are", "to", "in", "of", "and", "for", "on", "with",
	"i", "me", "my", "we", "our", "you", "your", "he", "she", "it", "its", "they",
	"them", "their", "this", "that", "these", "those", "am", "was", "were", "be",
	"been", "being", "have", "has", "had", "do", "does", "did", "but", "if", "or",
	"because", "as", "until", "while", "at", "by", "about", "against", "between",
	"into", "through", "during", "before", "after", "above", "below", "from", "up",
	"down", "out", "off", "over", "under", "again", "further", "then", "once",
	"here", "there", "when", "where", "why", "how", "all", "any", "both", "each",
	"few", "more", "most", "other", "some", "such", "no", "nor", "not", "only",
	"own", "same", "so", "than", "too", "very", "s", "t", "can", "will", "just",
	"don", "should", "now", "what", "which", "who", "whom", "would", "could",
)

func buildStopWords(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// complaintKeywords groups keywords by complaint category.
var complaintKeywords = []struct {
	category string
	keywords []string
}{
	{"screen", []string{"screen", "display", "touch", "brightness"}},
	{"battery", []string{"battery", "charge", "charging", "power"}},
	{"camera", []string{"camera", "photo", "picture", "lens"}},
	{"performance", []string{"slow", "lag", "crash", "freeze", "performance"}},
	{"build", []string{"build", "material", "quality", "durability", "scratch"}},
}

// CommonPhrases counts alphabetic non-stopword tokens across reviews and
// returns the most frequent ones. Ties keep first-seen order.
func CommonPhrases(reviews []string, limit int) []Phrase {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, review := range reviews {
		for _, tok := range tokenize(review) {
			if _, stop := stopWords[tok]; stop {
				continue
			}
			if counts[tok] == 0 {
				order = append(order, tok)
			}
			counts[tok]++
		}
	}

	phrases := make([]Phrase, 0, len(order))
	for _, tok := range order {
		phrases = append(phrases, Phrase{Text: tok, Count: counts[tok]})
	}
	sort.SliceStable(phrases, func(i, j int) bool {
		return phrases[i].Count > phrases[j].Count
	})
	if limit > 0 && len(phrases) > limit {
		phrases = phrases[:limit]
	}
	return phrases
}

// ComplaintCategories counts reviews mentioning each category at least once.
func ComplaintCategories(reviews []string) map[string]int {
	out := make(map[string]int, len(complaintKeywords))
	for _, c := range complaintKeywords {
		out[c.category] = 0
	}
	for _, review := range reviews {
		lower := strings.ToLower(review)
		for _, c := range complaintKeywords {
			for _, kw := range c.keywords {
				if strings.Contains(lower, kw) {
					out[c.category]++
					break
				}
			}
		}
	}
	return out
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if isAlpha(f) {
			out = append(out, f)
		}
	}
	return out
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

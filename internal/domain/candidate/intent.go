package candidate

import (
	"strings"
	"unicode"
)

// stopwords covers filler plus refinement vocabulary that does not change
// what kind of venue is wanted ("cheaper", "closer", "higher rated").
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a an and any are around at be best but by can could do find for from get give good great
		have here i im in is it just let like looking me more my near nearby need of on one only
		or other please recommend recommendation recommendations show so some something somewhere
		suggest than that the them there these this those to try up us want we what where which
		with within without would you
		place places restaurant restaurants spot spots food eat eating meal option options venue venues
		cheap cheaper cheapest expensive affordable budget inexpensive price priced pricey
		close closer closest far farther distance mile miles mi km radius
		rating rated rate star stars higher high top highly better
		remove drop clear filter filters sort sorted order instead again now also
	`) {
		stopwords[w] = struct{}{}
	}
}

// IntentTokens extracts the content words of a query: lowercased, split on
// anything that is not a letter or digit, stopwords and numbers removed,
// simple plurals folded. The result is deduplicated and order-preserving.
func IntentTokens(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || isNumber(f) {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		f = singular(f)
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Similarity is the Jaccard index of the intent tokens of a and b.
// Two queries without intent are identical.
func Similarity(a, b string) float64 {
	return jaccard(IntentTokens(a), IntentTokens(b))
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	inter := 0
	for _, t := range b {
		if _, ok := set[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func singular(s string) string {
	if len(s) > 3 && strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") {
		return s[:len(s)-1]
	}
	return s
}

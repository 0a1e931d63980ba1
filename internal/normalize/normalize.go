// Package normalize turns raw chart song and artist strings into catalog search fragments.
package normalize

import "strings"

// rule is one cleanup step. Rules run in table order on lowercased input.
type rule func(string) string

var (
	bracketPairs = [][2]string{{"(", ")"}, {"[", "]"}, {"{", "}"}}

	// Markers must be space separated so words like "after" or "left" survive.
	featuringMarkers = []string{" ft ", " ft. ", " feat ", " feat. ", " featuring "}

	// Spaces matter here too, e.g. "Andy Williams".
	creditMarkers = []string{" with ", " and ", " starring ", " - "}

	noiseSymbols = []string{"!", ",", "...", "?", "(", "{", "["}

	apostrophes = strings.NewReplacer("'", "", "’", "")
)

var songRules = []rule{
	stripBrackets,
	cutFeaturing,
	cutSlash,
	cutAmpersand,
	dropApostrophes,
	cutNoise,
	strings.TrimSpace,
}

var artistRules = []rule{
	stripBrackets,
	cutFeaturing,
	cutCredits,
	cutSlash,
	cutAmpersand,
	dropApostrophes,
	cutNoise,
	trimThe,
	strings.TrimSpace,
}

// Song normalizes a song title.
//
//	Song("Hello! (Live)") == "hello"
func Song(raw string) string {
	return apply(raw, songRules)
}

// Artist normalizes an artist credit. On top of the song rules it drops secondary
// credits joined by conjunctions and a leading "the".
//
//	Artist("The Beatles (Remastered) feat. Someone") == "beatles"
func Artist(raw string) string {
	return apply(raw, artistRules)
}

// Pair normalizes a chart row's song and artist together.
func Pair(song, artist string) (string, string) {
	return Song(song), Artist(artist)
}

func apply(raw string, rules []rule) string {
	s := strings.ToLower(raw)
	for _, r := range rules {
		s = r(s)
	}
	return s
}

// stripBrackets removes one bracketed segment per bracket type, from the first
// opening delimiter through the first closing delimiter after it.
func stripBrackets(s string) string {
	for _, pair := range bracketPairs {
		open := strings.Index(s, pair[0])
		if open < 0 {
			continue
		}
		closeAt := strings.Index(s[open+1:], pair[1])
		if closeAt < 0 {
			continue
		}
		s = s[:open] + s[open+1+closeAt+1:]
	}
	return s
}

func cutFeaturing(s string) string {
	return cutAtEarliest(s, featuringMarkers)
}

func cutCredits(s string) string {
	return cutAtEarliest(s, creditMarkers)
}

func cutSlash(s string) string {
	before, _, _ := strings.Cut(s, "/")
	return before
}

func cutAmpersand(s string) string {
	before, _, _ := strings.Cut(s, "&")
	return before
}

func dropApostrophes(s string) string {
	return apostrophes.Replace(s)
}

func cutNoise(s string) string {
	return cutAtEarliest(s, noiseSymbols)
}

func trimThe(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "the "); ok {
		return rest
	}
	return s
}

// cutAtEarliest keeps the text before whichever separator occurs first.
func cutAtEarliest(s string, seps []string) string {
	cut := len(s)
	for _, sep := range seps {
		if i := strings.Index(s, sep); i >= 0 && i < cut {
			cut = i
		}
	}
	return s[:cut]
}

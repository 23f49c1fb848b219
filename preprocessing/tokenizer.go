package preprocessing

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// tokenPattern matches runs of two or more Unicode word characters.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// analyzer splits documents into word n-grams.
type analyzer struct {
	lowercase  bool
	ngramRange [2]int
}

// newCaser returns a lowercasing Caser. Casers are stateful, so each goroutine needs its own.
func newCaser() cases.Caser {
	return cases.Lower(language.Und)
}

// analyze returns the n-grams of doc. caser is only used when lowercasing is enabled.
func (a analyzer) analyze(doc string, caser cases.Caser) []string {
	doc = norm.NFKC.String(doc)
	if a.lowercase {
		doc = caser.String(doc)
	}
	tokens := tokenPattern.FindAllString(doc, -1)

	minN, maxN := a.ngramRange[0], a.ngramRange[1]
	if minN == 1 && maxN == 1 {
		return tokens
	}
	grams := make([]string, 0, len(tokens)*(maxN-minN+1))
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			if n == 1 {
				grams = append(grams, tokens[i])
				continue
			}
			grams = append(grams, strings.Join(tokens[i:i+n], " "))
		}
	}
	return grams
}

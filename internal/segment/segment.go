// Package segment splits raw text into sentence units.
package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Sentences end on a run of terminal punctuation followed by whitespace or
// end of input. This intentionally mirrors the splitter the scoring side
// was tuned against.
var sentenceEndings = regexp.MustCompile(`[.!?]+(?:\s+|$)`)

// MinSentenceRunes - fragments at or below this length are noise
// (stray abbreviations, list bullets), not units of work.
const MinSentenceRunes = 5

// Sentence is one segmented unit with its ordinal position in the source.
type Sentence struct {
	Text     string
	Position int
}

// Split segments text into sentences, trims surrounding whitespace and
// drops fragments of MinSentenceRunes runes or fewer. Position reflects
// source order over the kept sentences.
func Split(text string) []Sentence {
	parts := sentenceEndings.Split(strings.TrimSpace(text), -1)

	sentences := make([]Sentence, 0, len(parts))
	for _, part := range parts {
		s := strings.TrimSpace(part)
		if utf8.RuneCountInString(s) <= MinSentenceRunes {
			continue
		}
		sentences = append(sentences, Sentence{
			Text:     s,
			Position: len(sentences),
		})
	}

	return sentences
}

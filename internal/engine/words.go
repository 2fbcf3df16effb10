package engine

import (
	_ "embed"
	"math/rand/v2"
	"strings"
)

//go:embed words.txt
var wordData string

type wordPair struct {
	common string
	spy    string
}

var wordPairs = loadWordPairs()

func loadWordPairs() []wordPair {
	var out []wordPair
	for _, line := range strings.Split(wordData, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, wordPair{common: parts[0], spy: parts[1]})
	}
	return out
}

// pickWordPair draws a random pair and randomizes which side is the
// spy word, so repeat games with the same pair stay unpredictable.
func pickWordPair() wordPair {
	p := wordPairs[rand.IntN(len(wordPairs))]
	if rand.IntN(2) == 0 {
		p.common, p.spy = p.spy, p.common
	}
	return p
}

package metrics

import (
	"unicode"
	"unicode/utf8"
)

// Features are size counts of a user query. They describe the query without
// carrying any of its text.
type Features struct {
	Bytes     int
	Runes     int
	Words     int // runs of non-space runes
	Lines     int // 0 for "", else 1 + newlines
	Questions int // '?' runes
	Digits    int // decimal digit runes
}

// QueryFeatures counts s in a single pass.
func QueryFeatures(s string) Features {
	f := Features{Bytes: len(s), Runes: utf8.RuneCountInString(s)}
	if s != "" {
		f.Lines = 1
	}
	inWord := false
	for _, r := range s {
		switch {
		case r == '\n':
			f.Lines++
		case r == '?':
			f.Questions++
		case unicode.IsDigit(r):
			f.Digits++
		}
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			f.Words++
			inWord = true
		}
	}
	return f
}

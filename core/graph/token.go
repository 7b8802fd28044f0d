package graph

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/FocuswithJustin/Rectify/core/errors"
)

// Token is a whitespace-delimited unit of text on one side of a graph.
type Token struct {
	// ID is unique across both sides of a graph (e.g., "s0", "t12").
	ID string `json:"id"`

	// Text includes the trailing whitespace of the word.
	Text string `json:"text"`
}

// Span is a half-open range [Begin, End) of token indexes.
type Span struct {
	Begin int `json:"begin"`
	End   int `json:"end"`
}

// Len returns the number of tokens in the span.
func (s Span) Len() int {
	return s.End - s.Begin
}

// Contains reports whether index i lies inside the span.
func (s Span) Contains(i int) bool {
	return i >= s.Begin && i < s.End
}

// Tokenize splits text into tokens, each a run of non-whitespace followed
// by the whitespace after it. Whitespace at the start of text belongs to
// the first token, so the tokens always concatenate back to text.
// Text consisting only of whitespace yields no tokens.
func Tokenize(text string) []string {
	var tokens []string
	start, i := 0, 0
	for i < len(text) {
		// Skip whitespace (only non-empty at the start of text).
		for i < len(text) {
			r, size := utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(r) {
				break
			}
			i += size
		}
		if i == len(text) {
			break
		}
		for i < len(text) {
			r, size := utf8.DecodeRuneInString(text[i:])
			if unicode.IsSpace(r) {
				break
			}
			i += size
		}
		for i < len(text) {
			r, size := utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(r) {
				break
			}
			i += size
		}
		tokens = append(tokens, text[start:i])
		start = i
	}
	return tokens
}

// Identify turns texts into tokens with ids prefix+index.
func Identify(texts []string, prefix string) []Token {
	tokens := make([]Token, len(texts))
	for i, text := range texts {
		tokens[i] = Token{ID: prefix + strconv.Itoa(i), Text: text}
	}
	return tokens
}

// Texts returns the text of each token.
func Texts(tokens []Token) []string {
	texts := make([]string, len(tokens))
	for i, t := range tokens {
		texts[i] = t.Text
	}
	return texts
}

// Punc reports whether a token ends a sentence: its trimmed text ends in
// a run of '.', '!' or '?'. Abbreviations starting with "t." (as in
// "t.ex.") are not sentence-terminal.
func Punc(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.HasPrefix(trimmed, "t.") {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

// Sentence returns the span of the sentence containing token i, delimited
// by tokens for which Punc holds. An empty text list gives an empty span.
func Sentence(texts []string, i int) Span {
	if len(texts) == 0 {
		return Span{}
	}
	if i < 0 {
		i = 0
	}
	if i >= len(texts) {
		i = len(texts) - 1
	}
	begin := i
	for begin > 0 && !Punc(texts[begin-1]) {
		begin--
	}
	end := i
	for end < len(texts)-1 && !Punc(texts[end]) {
		end++
	}
	return Span{Begin: begin, End: end + 1}
}

// TokenAt maps a character offset into texts to the index of the token
// that contains it and the offset inside that token. Offsets count runes.
//
// An offset at a token boundary belongs to the later token. The offset
// equal to the total length maps to the end of the last token.
func TokenAt(texts []string, offset int) (token, intra int, err error) {
	if offset < 0 {
		return 0, 0, errors.NewRange("character offset", offset, 0)
	}
	total := 0
	for i, text := range texts {
		n := utf8.RuneCountInString(text)
		if offset-total < n {
			return i, offset - total, nil
		}
		total += n
	}
	if offset == total && len(texts) > 0 {
		last := len(texts) - 1
		return last, utf8.RuneCountInString(texts[last]), nil
	}
	return 0, 0, errors.NewRange("character offset", offset, total)
}

// runeLen is utf8.RuneCountInString under a shorter name.
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func endsInSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return s != "" && unicode.IsSpace(r)
}

// wellShaped reports whether text is a valid token text: some
// non-whitespace and, unless last, trailing whitespace.
func wellShaped(text string, last bool) bool {
	if isBlank(text) {
		return false
	}
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	word := strings.TrimRightFunc(trimmed, unicode.IsSpace)
	if strings.IndexFunc(word, unicode.IsSpace) >= 0 {
		return false
	}
	return last || endsInSpace(text)
}

// Package reader walks Chinese text and annotates it with the longest
// dictionary matches, the way the hover popup would resolve each position.
package reader

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/japaniel/hoverdict/pkg/resolver"
)

// Token is one resolved word in a sentence. Start and End are rune offsets.
type Token struct {
	Surface string
	Start   int
	End     int
	Result  resolver.Result
}

// Sentence is a sentence together with the words resolved in it.
type Sentence struct {
	Text   string
	Tokens []Token
}

// Scanner resolves every Han position of a text, left to right. Each match
// consumes the characters it covers.
type Scanner struct {
	r *resolver.Resolver
}

func NewScanner(r *resolver.Resolver) *Scanner {
	return &Scanner{r: r}
}

// Scan returns the words found in text. Characters outside the Han script are
// skipped, as are Han characters with no entry.
func (s *Scanner) Scan(text string) []Token {
	runes := []rune(text)
	var tokens []Token
	for i := 0; i < len(runes); {
		if !unicode.Is(unicode.Han, runes[i]) {
			i++
			continue
		}
		end := min(i+resolver.MaxWordLength, len(runes))
		res, err := s.r.Resolve(string(runes[i:end]))
		if err != nil {
			i++
			continue
		}
		n := len([]rune(res.Word))
		tokens = append(tokens, Token{Surface: res.Word, Start: i, End: i + n, Result: res})
		i += n
	}
	return tokens
}

// ScanDocument splits text into sentences and scans each. Blank sentences are
// dropped.
func (s *Scanner) ScanDocument(text string) []Sentence {
	var out []Sentence
	for _, raw := range SplitSentences(text) {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		out = append(out, Sentence{Text: raw, Tokens: s.Scan(raw)})
	}
	return out
}

// SplitSentences splits on CJK and ASCII sentence terminators and newlines.
// The terminator stays with its sentence.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		switch r {
		case '。', '！', '？', '；', '!', '?', '\n':
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

var (
	// (?s) allows dot to match newlines
	// (?i) makes it case-insensitive
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
)

// SanitizeRuby removes ruby annotations (<rt>...</rt>) and ruby parentheses
// (<rp>...</rp>) from HTML content. Pages that gloss characters with pinyin or
// zhuyin would otherwise extract as "漢字hànzì".
func SanitizeRuby(content []byte) []byte {
	cleaned := reRT.ReplaceAll(content, []byte{})
	cleaned = reRP.ReplaceAll(cleaned, []byte{})
	return cleaned
}

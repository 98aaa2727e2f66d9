// Package resolver maps the text under the cursor to the longest headword
// with a usable entry in the Mandarin and Cantonese dictionaries.
package resolver

import (
	"errors"
	"fmt"
	"strings"
	"unicode"


	"github.com/japaniel/hoverdict/pkg/dictionary"
)

// MaxWordLength bounds the hover candidate span, in characters.
const MaxWordLength = 4

// cantoneseTag marks Cantonese-only senses embedded in the Mandarin source.
const cantoneseTag = "(cantonese)"

// Side holds the entries one dictionary contributed to a result.
type Side struct {
	Entries []dictionary.Entry `json:"entries"`
}

// Valid reports whether any entry carries a non-blank definition.
func (s Side) Valid() bool {
	for _, e := range s.Entries {
		for _, d := range e.Definitions {
			if strings.TrimSpace(d) != "" {
				return true
			}
		}
	}
	return false
}

// Result is the combined lookup for one headword.
type Result struct {
	Word      string `json:"word"`
	Mandarin  Side   `json:"mandarin"`
	Cantonese Side   `json:"cantonese"`
}

// Valid reports whether either side is usable as a match.
func (r Result) Valid() bool {
	return r.Mandarin.Valid() || r.Cantonese.Valid()
}

// NotFoundError is returned when no prefix of the query has a usable entry.
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no dictionary entry for %q", e.Query)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// Resolver looks words up in two read-only dictionaries. It holds no other
// state and is safe for concurrent use.
type Resolver struct {
	mandarin  dictionary.Dictionary
	cantonese dictionary.Dictionary
}

// New returns a Resolver over the given tables. Either may be nil.
func New(mandarin, cantonese dictionary.Dictionary) *Resolver {
	return &Resolver{mandarin: mandarin, cantonese: cantonese}
}

// Lookup returns the entries stored at exactly word. Cantonese-tagged senses
// are removed from the Mandarin side; the Cantonese side is returned as is.
// The returned entries are copies.
func (r *Resolver) Lookup(word string) Result {
	return Result{
		Word:      word,
		Mandarin:  Side{Entries: filterMandarin(r.mandarin.Get(word))},
		Cantonese: Side{Entries: copyEntries(r.cantonese.Get(word))},
	}
}

// Resolve finds the longest prefix of span, up to MaxWordLength characters,
// with a valid entry. The returned Result.Word is the matched prefix.
func (r *Resolver) Resolve(span string) (Result, error) {
	chars := candidateRunes(span)
	n := min(len(chars), MaxWordLength)
	for l := n; l >= 2; l-- {
		if res := r.Lookup(string(chars[:l])); res.Valid() {
			return res, nil
		}
	}
	if len(chars) > 0 {
		if res := r.Lookup(string(chars[:1])); res.Valid() {
			return res, nil
		}
	}
	return Result{}, &NotFoundError{Query: span}
}

// ResolveSelection resolves an explicit selection. A selection longer than
// MaxWordLength is first tried whole before falling back to Resolve.
func (r *Resolver) ResolveSelection(span string) (Result, error) {
	chars := candidateRunes(span)
	if len(chars) > MaxWordLength {
		if res := r.Lookup(string(chars)); res.Valid() {
			return res, nil
		}
	}
	return r.Resolve(span)
}

func candidateRunes(span string) []rune {
	// Keys are matched byte for byte, so the span is not normalised.
	return []rune(strings.TrimLeftFunc(span, unicode.IsSpace))
}

func filterMandarin(entries []*dictionary.Entry) []dictionary.Entry {
	out := make([]dictionary.Entry, 0, len(entries))
	for _, e := range entries {
		if len(e.Definitions) == 0 {
			// Reading stubs have nothing to filter.
			out = append(out, copyEntry(e))
			continue
		}
		defs := make([]string, 0, len(e.Definitions))
		for _, d := range e.Definitions {
			if strings.Contains(strings.ToLower(d), cantoneseTag) {
				continue
			}
			defs = append(defs, d)
		}
		if len(defs) == 0 {
			continue
		}
		c := *e
		c.Definitions = defs
		out = append(out, c)
	}
	return out
}

func copyEntries(entries []*dictionary.Entry) []dictionary.Entry {
	out := make([]dictionary.Entry, len(entries))
	for i, e := range entries {
		out[i] = copyEntry(e)
	}
	return out
}

func copyEntry(e *dictionary.Entry) dictionary.Entry {
	c := *e
	c.Definitions = append([]string{}, e.Definitions...)
	return c
}

package dictionary

import (
	"sort"
)

// Entry is one attested reading of one written form.
// Romanisation is Pinyin for Mandarin entries and Jyutping for Cantonese entries.
type Entry struct {
	Traditional  string   `json:"traditional"`
	Simplified   string   `json:"simplified"`
	Romanisation string   `json:"romanisation"`
	Definitions  []string `json:"definitions"`
}

// SameReading reports whether two entries share the identity triple
// (traditional, simplified, romanisation). Definitions are not compared.
func (e *Entry) SameReading(o *Entry) bool {
	return e.Traditional == o.Traditional &&
		e.Simplified == o.Simplified &&
		e.Romanisation == o.Romanisation
}

// HasDefinitions reports whether the entry carries at least one gloss.
func (e *Entry) HasDefinitions() bool {
	return len(e.Definitions) > 0
}

// Dictionary maps a headword (either script) to its entries in insertion order.
// An entry indexed under both scripts is shared between the two keys.
type Dictionary map[string][]*Entry

func New() Dictionary {
	return make(Dictionary)
}

// Add indexes e under its simplified form and, when different, its traditional form.
// Duplicates are checked per key; the first entry seen for a reading wins.
func (d Dictionary) Add(e *Entry) {
	if e.Definitions == nil {
		e.Definitions = []string{}
	}
	if e.Simplified != "" {
		d.AddUnder(e.Simplified, e)
	}
	if e.Traditional != "" && e.Traditional != e.Simplified {
		d.AddUnder(e.Traditional, e)
	}
}

// AddUnder appends e to word's entries unless an entry with the same reading is
// already present. It returns false for a dropped duplicate.
func (d Dictionary) AddUnder(word string, e *Entry) bool {
	for _, existing := range d[word] {
		if existing.SameReading(e) {
			return false
		}
	}
	if e.Definitions == nil {
		e.Definitions = []string{}
	}
	d[word] = append(d[word], e)
	return true
}

// Get returns the entries stored under word, or nil.
func (d Dictionary) Get(word string) []*Entry {
	return d[word]
}

// Words returns every headword in sorted order.
func (d Dictionary) Words() []string {
	words := make([]string, 0, len(d))
	for w := range d {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// Stats summarises a table for build reports.
type Stats struct {
	Words   int `json:"words"`
	Entries int `json:"entries"`
	Defined int `json:"defined"`
}

// Stats counts distinct entries, so an entry shared by two keys counts once.
func (d Dictionary) Stats() Stats {
	seen := make(map[*Entry]struct{})
	s := Stats{Words: len(d)}
	for _, entries := range d {
		for _, e := range entries {
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			s.Entries++
			if e.HasDefinitions() {
				s.Defined++
			}
		}
	}
	return s
}

package db

import "time"

// Word is a resolved headword seen while annotating a source.
type Word struct {
	ID          int64
	Word        string
	Pinyin      string
	Jyutping    string
	Definitions string // JSON encoded lookup result
}

// Source is a provenance record for where a word was seen.
type Source struct {
	ID         int64
	SourceType string
	Title      string
	Author     string
	Website    string
	URL        string
	Meta       string
	AddedAt    time.Time
}

// WordSource links a Word with a Source and holds contextual metadata.
type WordSource struct {
	ID              int64
	WordID          int64
	SourceID        int64
	ContextSentence string
	OccurrenceCount int
	FirstSeenAt     time.Time
}

// Lookup is the hover frequency record of one resolved word.
type Lookup struct {
	Word        string    `json:"word"`
	Count       int64     `json:"count"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

package dictionary

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"
)

const scannerBufSize = 1 << 20 // 1 MB

// Cantonese line grammar, tried in order:
//
//	TRAD SIMP [pinyin] {jyutping} /def/def/
//	TRAD SIMP [pinyin] /def/def/
//	TRAD SIMP [pinyin] {jyutping}
var (
	reCantoFull      = regexp.MustCompile(`^(\S+)\s+(\S+)\s+\[([^\]]*)\]\s*\{([^}]*)\}\s*/(.*)/\s*$`)
	reCantoNoReading = regexp.MustCompile(`^(\S+)\s+(\S+)\s+\[([^\]]*)\]\s*/(.*)/\s*$`)
	reCantoReading   = regexp.MustCompile(`^(\S+)\s+(\S+)\s+\[([^\]]*)\]\s*\{([^}]*)\}\s*$`)
)

// ParseCantoneseLine parses one lexicon line. Blank lines, # comments and lines
// matching no pattern return false.
func ParseCantoneseLine(line string) (*Entry, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, false
	}

	if m := reCantoFull.FindStringSubmatch(line); m != nil {
		return &Entry{
			Traditional:  m[1],
			Simplified:   m[2],
			Romanisation: pickRomanisation(m[4], m[3]),
			Definitions:  splitDefinitions(m[5]),
		}, true
	}
	if m := reCantoNoReading.FindStringSubmatch(line); m != nil {
		return &Entry{
			Traditional:  m[1],
			Simplified:   m[2],
			Romanisation: pickRomanisation("", m[3]),
			Definitions:  splitDefinitions(m[4]),
		}, true
	}
	if m := reCantoReading.FindStringSubmatch(line); m != nil {
		return &Entry{
			Traditional:  m[1],
			Simplified:   m[2],
			Romanisation: pickRomanisation(m[4], m[3]),
			Definitions:  []string{},
		}, true
	}
	return nil, false
}

// pickRomanisation prefers the Jyutping field and falls back to Pinyin.
func pickRomanisation(jyutping, pinyin string) string {
	if j := strings.TrimSpace(jyutping); j != "" {
		return j
	}
	return strings.TrimSpace(pinyin)
}

func splitDefinitions(body string) []string {
	return cleanDefinitions(strings.Split(body, "/"))
}

// LoadCantonese parses a line-oriented Cantonese lexicon into a Dictionary.
func LoadCantonese(path string) (Dictionary, error) {
	return loadCantonese(path, Options{})
}

func loadCantonese(path string, opts Options) (Dictionary, error) {
	src, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	d := New()
	scanner := bufio.NewScanner(src)
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, scannerBufSize)
	for scanner.Scan() {
		e, ok := ParseCantoneseLine(scanner.Text())
		if !ok {
			continue
		}
		if err := opts.normalize(e, false); err != nil {
			return nil, fmt.Errorf("normalize %s: %w", e.Traditional, err)
		}
		d.Add(e)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return d, nil
}

// MergeReadings folds a readings-only table into main. For words main already
// has, each reading fills the first main entry still lacking a romanisation;
// words main lacks are copied over with the usual duplicate check.
// It returns the number of backfilled and inserted entries.
func MergeReadings(main, readings Dictionary) (backfilled, inserted int) {
	for _, word := range readings.Words() {
		targets := main[word]
		if len(targets) == 0 {
			for _, r := range readings[word] {
				if main.AddUnder(word, r) {
					inserted++
				}
			}
			continue
		}
		for _, r := range readings[word] {
			if r.Romanisation == "" {
				continue
			}
			for _, t := range targets {
				if t.Romanisation == "" {
					t.Romanisation = r.Romanisation
					backfilled++
					break
				}
			}
		}
	}
	return backfilled, inserted
}

package dictionary

import (
	"strings"

	"github.com/longbridgeapp/opencc"
	"github.com/mozillazg/go-pinyin"
)

// Converter rewrites a headword from one script to another.
type Converter interface {
	Convert(in string) (string, error)
}

// Romaniser produces a reading for a headword, or "" when it cannot.
type Romaniser interface {
	Romanise(word string) string
}

// NewSimplifier returns an OpenCC traditional-to-simplified converter.
func NewSimplifier() (Converter, error) {
	cc, err := opencc.New("t2s")
	if err != nil {
		return nil, err
	}
	return cc, nil
}

// PinyinRomaniser produces CC-CEDICT style numbered-tone pinyin ("zhong1 guo2").
type PinyinRomaniser struct {
	args pinyin.Args
}

func NewPinyinRomaniser() *PinyinRomaniser {
	a := pinyin.NewArgs()
	a.Style = pinyin.Tone3
	return &PinyinRomaniser{args: a}
}

func (p *PinyinRomaniser) Romanise(word string) string {
	return strings.Join(pinyin.LazyPinyin(word, p.args), " ")
}

// Options control the optional normalisation applied before insertion.
type Options struct {
	// Simplifier fills an empty simplified form from the traditional one.
	Simplifier Converter
	// Romaniser fills an empty Mandarin romanisation. It is never applied to
	// Cantonese entries, whose readings are Jyutping.
	Romaniser Romaniser
}

func (o Options) normalize(e *Entry, romanise bool) error {
	if e.Simplified == "" && e.Traditional != "" && o.Simplifier != nil {
		s, err := o.Simplifier.Convert(e.Traditional)
		if err != nil {
			return err
		}
		e.Simplified = s
	}
	if romanise && e.Romanisation == "" && o.Romaniser != nil {
		word := e.Simplified
		if word == "" {
			word = e.Traditional
		}
		e.Romanisation = o.Romaniser.Romanise(word)
	}
	return nil
}

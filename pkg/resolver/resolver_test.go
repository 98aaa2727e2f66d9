package resolver

import (
	"sync"
	"testing"

	"github.com/japaniel/hoverdict/pkg/dictionary"
)

func entry(word, rom string, defs ...string) *dictionary.Entry {
	return &dictionary.Entry{Traditional: word, Simplified: word, Romanisation: rom, Definitions: defs}
}

func table(entries ...*dictionary.Entry) dictionary.Dictionary {
	d := dictionary.New()
	for _, e := range entries {
		d.Add(e)
	}
	return d
}

func TestResolveLongestMatch(t *testing.T) {
	r := New(table(entry("中", "zhong1", "middle"), entry("中国", "zhong1 guo2", "China")), nil)

	res, err := r.Resolve("中国人")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Word != "中国" {
		t.Fatalf("Resolve(中国人).Word = %q; want 中国", res.Word)
	}
}

func TestResolveFallsBackToSingleCharacter(t *testing.T) {
	r := New(table(entry("中", "zhong1", "middle")), nil)
	for _, q := range []string{"中x", "中", "中xyzw", "中xyzwvu"} {
		res, err := r.Resolve(q)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", q, err)
		}
		if res.Word != "中" {
			t.Fatalf("Resolve(%q).Word = %q; want 中", q, res.Word)
		}
	}
}

func TestResolveBoundsHoverSpan(t *testing.T) {
	r := New(table(entry("一二三四五", "", "five chars"), entry("一二", "", "two chars")), nil)
	res, err := r.Resolve("一二三四五")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Word != "一二" {
		t.Fatalf("hover span must be bounded to %d characters, got %q", MaxWordLength, res.Word)
	}
}

func TestResolveSelectionTriesFullSpan(t *testing.T) {
	r := New(table(entry("一二三四五", "", "five chars"), entry("一二", "", "two chars")), nil)
	res, err := r.ResolveSelection("一二三四五")
	if err != nil {
		t.Fatalf("ResolveSelection: %v", err)
	}
	if res.Word != "一二三四五" {
		t.Fatalf("ResolveSelection.Word = %q; want the full selection", res.Word)
	}

	res, err = r.ResolveSelection("一二三四五六")
	if err != nil {
		t.Fatalf("ResolveSelection: %v", err)
	}
	if res.Word != "一二" {
		t.Fatalf("unmatched selection should fall back to hover resolution, got %q", res.Word)
	}
}

func TestResolveSkipsReadingStubs(t *testing.T) {
	mandarin := table(entry("你好", "ni3 hao3"), entry("你", "ni3", "you"))
	cantonese := table(entry("你好", "nei5 hou2", "  "))
	r := New(mandarin, cantonese)

	res, err := r.Resolve("你好")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Word != "你" {
		t.Fatalf("entries without definitions must not match, got %q", res.Word)
	}
}

func TestResolveCantoneseTagFiltering(t *testing.T) {
	mandarin := table(
		entry("嘢", "ye3", "(Cantonese) thing"),
		entry("咗", "zuo5", "(CANTONESE) perfective particle", "variant of 左"),
	)
	cantonese := table(entry("嘢", "je5", "thing; stuff"))
	r := New(mandarin, cantonese)

	res, err := r.Resolve("嘢")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(res.Mandarin.Entries) != 0 {
		t.Fatalf("cantonese-only mandarin entry must be dropped, got %+v", res.Mandarin.Entries)
	}
	if res.Mandarin.Valid() {
		t.Fatalf("mandarin side should be reported not found")
	}
	if !res.Cantonese.Valid() || res.Cantonese.Entries[0].Definitions[0] != "thing; stuff" {
		t.Fatalf("cantonese side must be unfiltered, got %+v", res.Cantonese.Entries)
	}

	res = r.Lookup("咗")
	if len(res.Mandarin.Entries) != 1 {
		t.Fatalf("expected partially tagged entry to survive, got %+v", res.Mandarin.Entries)
	}
	if defs := res.Mandarin.Entries[0].Definitions; len(defs) != 1 || defs[0] != "variant of 左" {
		t.Fatalf("tagged senses must be removed, got %v", defs)
	}
}

func TestResolveTaggedOnlyIsNotFound(t *testing.T) {
	r := New(table(entry("嘢", "ye3", "(Cantonese) thing")), dictionary.New())
	_, err := r.Resolve("嘢")
	if !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestResolveNotFound(t *testing.T) {
	r := New(table(entry("中", "zhong1", "middle")), table(entry("你", "nei5", "you")))
	for _, q := range []string{"xyz", "", "   ", "國家"} {
		res, err := r.Resolve(q)
		if !IsNotFound(err) {
			t.Fatalf("Resolve(%q): expected NotFoundError, got %v (%+v)", q, err, res)
		}
		if res.Word != "" || len(res.Mandarin.Entries) != 0 || len(res.Cantonese.Entries) != 0 {
			t.Fatalf("not-found must not carry a result, got %+v", res)
		}
	}
}

func TestResolveMatchesKeysExactly(t *testing.T) {
	// U+F900 is a compatibility ideograph; NFC would rewrite it to U+8C48.
	r := New(table(entry("\uf900", "qi3", "how?")), nil)

	if !r.Lookup("\uf900").Valid() {
		t.Fatalf("Lookup should find the stored key")
	}
	res, err := r.Resolve("  \uf900x")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Word != "\uf900" {
		t.Fatalf("Resolve.Word = %q; want U+F900", res.Word)
	}
	if _, err := r.Resolve("\u8c48"); !IsNotFound(err) {
		t.Fatalf("the unified ideograph is a different key, got %v", err)
	}
}

func TestLookupReturnsCopies(t *testing.T) {
	src := entry("中", "zhong1", "middle")
	r := New(table(src), nil)

	res := r.Lookup("中")
	res.Mandarin.Entries[0].Definitions[0] = "changed"
	res.Mandarin.Entries[0].Romanisation = "changed"
	if src.Definitions[0] != "middle" || src.Romanisation != "zhong1" {
		t.Fatalf("Lookup leaked a mutable reference into the dictionary: %+v", src)
	}
	if res.Cantonese.Entries == nil {
		t.Fatalf("empty side should be an empty list, not nil")
	}
}

func TestResolveConcurrent(t *testing.T) {
	r := New(table(entry("中", "zhong1", "middle"), entry("中国", "zhong1 guo2", "China")), nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if res, err := r.Resolve("中国人"); err != nil || res.Word != "中国" {
					t.Errorf("Resolve = %+v, %v", res, err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

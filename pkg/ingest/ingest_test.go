package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"

	"github.com/japaniel/hoverdict/pkg/db"
	"github.com/japaniel/hoverdict/pkg/dictionary"
	"github.com/japaniel/hoverdict/pkg/reader"
	"github.com/japaniel/hoverdict/pkg/resolver"
)

func setupDB(t testing.TB) *sql.DB {
	conn, err := db.Open(db.SQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := db.InitDB(conn); err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	return conn
}

func testScanner() *reader.Scanner {
	mandarin := dictionary.New()
	mandarin.Add(&dictionary.Entry{Traditional: "學生", Simplified: "学生", Romanisation: "xue2 sheng5", Definitions: []string{"student"}})
	mandarin.Add(&dictionary.Entry{Traditional: "測試", Simplified: "测试", Romanisation: "ce4 shi4", Definitions: []string{"test"}})
	cantonese := dictionary.New()
	cantonese.Add(&dictionary.Entry{Traditional: "學生", Simplified: "学生", Romanisation: "hok6 saang1", Definitions: []string{"student"}})
	cantonese.Add(&dictionary.Entry{Traditional: "食飯", Simplified: "食饭", Romanisation: "sik6 faan6", Definitions: []string{"to eat a meal"}})
	return reader.NewScanner(resolver.New(mandarin, cantonese))
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func TestIngestRecordsWords(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	sourceID, err := db.CreateOrGetSource(conn, "test", "Title", "Author", "Site", "http://test", "")
	if err != nil {
		t.Fatal(err)
	}
	sentences := []string{"學生食飯。", "學生同學生測試。", "hello"}

	var lastProgress int
	ingester := NewIngester(conn, testScanner())
	ingester.OnProgress = func(current, total int) { lastProgress = current }

	count, err := ingester.Ingest(context.Background(), sourceID, sentences)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	// 學生 x3, 食飯 x1, 測試 x1
	if count != 5 {
		t.Fatalf("expected 5 linked occurrences, got %d", count)
	}
	if lastProgress != len(sentences) {
		t.Errorf("expected final progress %d, got %d", len(sentences), lastProgress)
	}

	words, err := db.GetWordsBySource(conn, sourceID)
	if err != nil {
		t.Fatalf("GetWordsBySource: %v", err)
	}
	if len(words) != 3 || words[0].Word != "學生" {
		t.Fatalf("unexpected words %+v", words)
	}
	if words[0].Pinyin != "xue2 sheng5" || words[0].Jyutping != "hok6 saang1" {
		t.Fatalf("unexpected readings %+v", words[0])
	}
	var res resolver.Result
	if err := json.Unmarshal([]byte(words[0].Definitions), &res); err != nil {
		t.Fatalf("stored definitions are not a lookup result: %v", err)
	}
	if res.Word != "學生" || !res.Mandarin.Valid() {
		t.Fatalf("unexpected stored result %+v", res)
	}

	ws, err := db.GetWordSource(conn, words[0].ID, sourceID)
	if err != nil {
		t.Fatalf("GetWordSource: %v", err)
	}
	if ws.OccurrenceCount != 3 || !strings.Contains(ws.ContextSentence, "學生") {
		t.Fatalf("unexpected link %+v", ws)
	}

	progress, err := db.GetSourceProgress(conn, sourceID)
	if err != nil {
		t.Fatal(err)
	}
	if progress != len(sentences)-1 {
		t.Fatalf("expected checkpoint %d, got %d", len(sentences)-1, progress)
	}
}

func TestIngestResume(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	sourceID, err := db.CreateOrGetSource(conn, "test", "Title", "Author", "Site", "http://test", "")
	if err != nil {
		t.Fatal(err)
	}

	sentences := repeat("測試", 10)

	// Manually set progress to index 4 (so 5 sentences processed: 0,1,2,3,4)
	if err := db.UpdateSourceProgress(conn, sourceID, 4); err != nil {
		t.Fatal(err)
	}

	ingester := NewIngester(conn, testScanner())
	ingester.BatchSize = 2 // Verify batching doesn't interfere

	count, err := ingester.Ingest(context.Background(), sourceID, sentences)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	// We expect sentences 5,6,7,8,9 to be processed.
	if count != 5 {
		t.Errorf("Expected 5 linked items, got %d", count)
	}

	// A second run has nothing left to do.
	count, err = ingester.Ingest(context.Background(), sourceID, sentences)
	if err != nil || count != 0 {
		t.Fatalf("expected finished source to be skipped, got %d, %v", count, err)
	}
}

func TestIngestWithoutScanner(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()
	sourceID, _ := db.CreateOrGetSource(conn, "test", "Title", "", "", "http://noscanner", "")

	count, err := NewIngester(conn, nil).Ingest(context.Background(), sourceID, repeat("學生", 3))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no links without a scanner, got %d", count)
	}
	if progress, _ := db.GetSourceProgress(conn, sourceID); progress != 2 {
		t.Fatalf("progress should still be recorded, got %d", progress)
	}
}

func TestIngestContextCancel(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()
	sourceID, _ := db.CreateOrGetSource(conn, "test", "Title", "", "", "http://test2", "")

	ingester := NewIngester(conn, testScanner())
	ingester.BatchSize = 10

	// Create a context that is ALREADY canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count, err := ingester.Ingest(ctx, sourceID, repeat("學生", 100))
	if count != 0 {
		t.Errorf("Expected 0 linked items with cancelled context, got %d", count)
	}
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}

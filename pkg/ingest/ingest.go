// Package ingest annotates a document sentence by sentence and records every
// resolved word, with its readings and the sentence it was seen in.
package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/japaniel/hoverdict/pkg/db"
	"github.com/japaniel/hoverdict/pkg/logging"
	"github.com/japaniel/hoverdict/pkg/reader"
	"github.com/japaniel/hoverdict/pkg/resolver"
)

// WorkerPoolInterface abstracts the worker pool so tests can inject failing implementations.
type WorkerPoolInterface interface {
	Start(ctx context.Context)
	Submit(Job) error
	// SubmitCtx attempts to enqueue a job but returns promptly if ctx is canceled.
	SubmitCtx(ctx context.Context, job Job) error
	Close()
}

// Ingester handles the ingestion of sentences into the database.
type Ingester struct {
	DB        *sql.DB
	Scanner   *reader.Scanner
	BatchSize int
	// Logger is used for informational messages (e.g. resume status). nil means no logging.
	Logger logging.Logger
	// OnProgress is called periodically with the number of processed sentences and total sentences.
	OnProgress func(current, total int)

	Workers int

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewIngester creates a new Ingester. A nil scanner resolves nothing, so only
// progress is recorded.
func NewIngester(conn *sql.DB, scanner *reader.Scanner) *Ingester {
	return &Ingester{
		DB:        conn,
		Scanner:   scanner,
		BatchSize: 50,
		Workers:   4,
	}
}

// wordData holds prepared data for a single word occurrence in a sentence
type wordData struct {
	Word        string
	Pinyin      string
	Jyutping    string
	Definitions string
	Count       int
}

// processedSentence holds the result of processing a sentence before DB ingestion
type processedSentence struct {
	Index    int
	Sentence string
	Words    []wordData
	Error    error
}

// Ingest resolves sentences concurrently and writes them in order through a
// batch writer. Progress is checkpointed in every batch transaction, so a
// later call with the same sourceID resumes after the last committed sentence. It returns the
// number of word occurrences linked to the source.
func (ig *Ingester) Ingest(ctx context.Context, sourceID int64, sentences []string) (int, error) {
	log := logging.OrNop(ig.Logger)

	lastProcessed, err := db.GetSourceProgress(ig.DB, sourceID)
	if err != nil {
		log.Warnf("failed to retrieve progress for source %d: %v", sourceID, err)
		lastProcessed = -1
	}
	if lastProcessed >= 0 {
		log.Infof("resuming from sentence index %d (skipping %d sentences)", lastProcessed+1, lastProcessed+1)
	}

	totalSentences := len(sentences)
	startIdx := lastProcessed + 1
	if startIdx >= totalSentences {
		return 0, nil
	}

	batchSize := ig.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	var wp WorkerPoolInterface
	if ig.PoolFactory != nil {
		wp = ig.PoolFactory(ig.Workers, ig.Workers*2)
	} else {
		wp = NewWorkerPool(ig.Workers, ig.Workers*2)
	}
	resultCh := make(chan processedSentence, max(ig.Workers, 1)*2)
	doneCh := make(chan error, 1)

	var totalLinks int64

	bw := NewBatchWriter(ig.DB, batchSize, 100*time.Millisecond)
	bw.Logger = ig.Logger
	// Writes and checkpoints both run on the committer goroutine.
	lastWritten := -1
	bw.Checkpoint = func(ctx context.Context, tx *sql.Tx) error {
		if lastWritten < 0 {
			return nil
		}
		return db.UpdateSourceProgress(tx, sourceID, lastWritten)
	}
	var batchErr error
	var batchErrMu sync.Mutex
	bw.OnError = func(e error) {
		batchErrMu.Lock()
		if batchErr == nil {
			batchErr = e
		}
		batchErrMu.Unlock()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wp.Start(ctx)

	// Consumer: results arrive out of order; writes are submitted in sentence
	// order so the progress checkpoint never skips a sentence.
	go func() {
		defer close(doneCh)
		buffer := make(map[int]processedSentence)
		nextIdx := startIdx

		drain := func() error {
			for {
				item, ok := buffer[nextIdx]
				if !ok {
					return nil
				}
				delete(buffer, nextIdx)
				if err := bw.Submit(ig.writeSentence(sourceID, item, &totalLinks, &lastWritten)); err != nil {
					return err
				}
				nextIdx++
				// Approximate, since the batch might not be flushed yet.
				if ig.OnProgress != nil && nextIdx%batchSize == 0 {
					ig.OnProgress(nextIdx, totalSentences)
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				doneCh <- ctx.Err()
				return
			default:
			}

			res, ok := <-resultCh
			if !ok {
				if err := ctx.Err(); err != nil {
					doneCh <- err
					return
				}
				if err := drain(); err != nil {
					doneCh <- err
					return
				}
				if ig.OnProgress != nil {
					ig.OnProgress(totalSentences, totalSentences)
				}
				doneCh <- nil
				return
			}
			if res.Error != nil {
				cancel()
				doneCh <- res.Error
				return
			}
			buffer[res.Index] = res
			if err := drain(); err != nil {
				cancel()
				doneCh <- err
				return
			}
		}
	}()

	var producerErr error
Loop:
	for i := startIdx; i < totalSentences; i++ {
		select {
		case <-ctx.Done():
			break Loop
		default:
		}

		idx := i
		text := sentences[i]
		job := func(ctx context.Context) error {
			res := ig.processSentence(idx, text)
			select {
			case resultCh <- res:
			case <-ctx.Done():
			}
			return nil
		}

		if err := wp.SubmitCtx(ctx, job); err != nil {
			if err == ctx.Err() || err == ErrPoolClosed {
				break Loop
			}
			producerErr = fmt.Errorf("submit sentence %d: %w", idx, err)
			cancel()
			break Loop
		}
	}

	// All workers have exited once Close returns, so nothing sends on resultCh
	// after it is closed.
	wp.Close()
	close(resultCh)

	consumerErr := <-doneCh
	if err := bw.Close(); err != nil && consumerErr == nil {
		consumerErr = err
	}
	log.Debugf("source %d: committed %d of %d sentences", sourceID, bw.Committed(), totalSentences-startIdx)
	batchErrMu.Lock()
	if batchErr != nil && consumerErr == nil {
		consumerErr = batchErr
	}
	batchErrMu.Unlock()

	if producerErr != nil {
		return int(atomic.LoadInt64(&totalLinks)), producerErr
	}
	return int(atomic.LoadInt64(&totalLinks)), consumerErr
}

// writeSentence persists the words of one sentence and marks it as written.
// The batch checkpoint stores the mark together with the words.
func (ig *Ingester) writeSentence(sourceID int64, item processedSentence, links *int64, lastWritten *int) WriteFunc {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, w := range item.Words {
			wordID, err := db.CreateOrGetWord(tx, w.Word, w.Pinyin, w.Jyutping, w.Definitions)
			if err != nil {
				return fmt.Errorf("failed to persist word %s: %w", w.Word, err)
			}
			if err := db.LinkWordToSource(tx, wordID, sourceID, item.Sentence, w.Count); err != nil {
				return fmt.Errorf("failed to link word %d: %w", wordID, err)
			}
			atomic.AddInt64(links, int64(w.Count))
		}
		*lastWritten = item.Index
		return nil
	}
}

// processSentence resolves the words of one sentence and counts them.
func (ig *Ingester) processSentence(index int, sentence string) processedSentence {
	out := processedSentence{Index: index, Sentence: sentence}
	if ig.Scanner == nil {
		return out
	}

	counts := make(map[string]int)
	results := make(map[string]resolver.Result)
	var ordered []string
	for _, tok := range ig.Scanner.Scan(sentence) {
		if _, ok := counts[tok.Surface]; !ok {
			ordered = append(ordered, tok.Surface)
			results[tok.Surface] = tok.Result
		}
		counts[tok.Surface]++
	}

	for _, w := range ordered {
		res := results[w]
		defs, err := json.Marshal(res)
		if err != nil {
			out.Error = fmt.Errorf("encode %s: %w", w, err)
			return out
		}
		out.Words = append(out.Words, wordData{
			Word:        w,
			Pinyin:      firstReading(res.Mandarin),
			Jyutping:    firstReading(res.Cantonese),
			Definitions: string(defs),
			Count:       counts[w],
		})
	}
	return out
}

func firstReading(s resolver.Side) string {
	for _, e := range s.Entries {
		if e.Romanisation != "" {
			return e.Romanisation
		}
	}
	return ""
}

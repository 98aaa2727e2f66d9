package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/japaniel/hoverdict/pkg/config"
	"github.com/japaniel/hoverdict/pkg/db"
	"github.com/japaniel/hoverdict/pkg/dictionary"
	"github.com/japaniel/hoverdict/pkg/ingest"
	"github.com/japaniel/hoverdict/pkg/logging"
	"github.com/japaniel/hoverdict/pkg/reader"
	"github.com/japaniel/hoverdict/pkg/resolver"
	"github.com/japaniel/hoverdict/pkg/server"
	"github.com/japaniel/hoverdict/pkg/stats"
)

const usage = `usage: hoverdict <command> [flags]

commands:
  build     build the Mandarin and Cantonese tables from the raw sources
  lookup    resolve words against the built tables and print them as JSON
  annotate  annotate an article (-url or -file) and store word occurrences
  serve     serve lookups and statistics over HTTP
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "build":
		err = runBuild(ctx, args)
	case "lookup":
		err = runLookup(args)
	case "annotate":
		err = runAnnotate(ctx, args)
	case "serve":
		err = runServe(ctx, args)
	case "help", "-h", "-help", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		cancel()
		log.Fatalf("%s failed: %v", cmd, err)
	}
}

// loadConfig reads the config file if one is given and validates the result.
// apply runs between the two so that explicitly set flags win over the file.
func loadConfig(fs *flag.FlagSet, path string, apply func(cfg *config.Config, set map[string]bool)) (config.Config, logging.Logger, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, nil, err
		}
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if apply != nil {
		apply(&cfg, set)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	level, _ := logging.ParseLevel(cfg.Log.Level)
	return cfg, logging.New(level), nil
}

func runBuild(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a YAML config file")
	mandarin := fs.String("mandarin", "", "Path to the Mandarin JSON source")
	cantoMain := fs.String("cantonese-main", "", "Path to the Cantonese main lexicon")
	cantoReadings := fs.String("cantonese-readings", "", "Path to the Cantonese readings lexicon")
	outMandarin := fs.String("out-mandarin", "", "Output path of the Mandarin table")
	outCantonese := fs.String("out-cantonese", "", "Output path of the Cantonese table")
	download := fs.Bool("download", false, "Download missing sources from their configured URLs")
	fillSimplified := fs.Bool("fill-simplified", false, "Derive missing simplified forms with OpenCC")
	fillPinyin := fs.Bool("fill-pinyin", false, "Derive missing Mandarin readings as numbered pinyin")
	fs.Parse(args)

	cfg, logger, err := loadConfig(fs, *configPath, func(cfg *config.Config, set map[string]bool) {
		if set["mandarin"] {
			cfg.Sources.Mandarin.Path = *mandarin
		}
		if set["cantonese-main"] {
			cfg.Sources.CantoneseMain.Path = *cantoMain
		}
		if set["cantonese-readings"] {
			cfg.Sources.CantoneseReadings.Path = *cantoReadings
		}
		if set["out-mandarin"] {
			cfg.Output.Mandarin = *outMandarin
		}
		if set["out-cantonese"] {
			cfg.Output.Cantonese = *outCantonese
		}
		if set["download"] {
			cfg.Build.Download = *download
		}
		if set["fill-simplified"] {
			cfg.Build.FillSimplified = *fillSimplified
		}
		if set["fill-pinyin"] {
			cfg.Build.FillPinyin = *fillPinyin
		}
	})
	if err != nil {
		return err
	}

	bc := cfg.BuildConfig()
	bc.Logger = logger
	if cfg.Build.FillSimplified {
		s, err := dictionary.NewSimplifier()
		if err != nil {
			return fmt.Errorf("failed to load OpenCC: %w", err)
		}
		bc.Options.Simplifier = s
	}
	if cfg.Build.FillPinyin {
		bc.Options.Romaniser = dictionary.NewPinyinRomaniser()
	}

	start := time.Now()
	report, err := dictionary.Build(ctx, bc)
	if report.Mandarin != nil {
		fmt.Printf("Mandarin: %d words, %d entries written to %s\n", report.Mandarin.Words, report.Mandarin.Entries, bc.MandarinOut)
	}
	if report.Cantonese != nil {
		fmt.Printf("Cantonese: %d words, %d entries written to %s\n", report.Cantonese.Words, report.Cantonese.Entries, bc.CantoneseOut)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Build complete in %v\n", time.Since(start).Round(time.Millisecond))
	return nil
}

// loadResolver loads the built tables named by cfg.Output.
func loadResolver(cfg config.Config) (*resolver.Resolver, error) {
	mandarin, err := dictionary.Load(cfg.Output.Mandarin)
	if err != nil {
		return nil, fmt.Errorf("failed to load Mandarin table (run `hoverdict build` first): %w", err)
	}
	cantonese, err := dictionary.Load(cfg.Output.Cantonese)
	if err != nil {
		return nil, fmt.Errorf("failed to load Cantonese table (run `hoverdict build` first): %w", err)
	}
	return resolver.New(mandarin, cantonese), nil
}

func runLookup(args []string) error {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a YAML config file")
	selection := fs.Bool("selection", false, "Treat each word as an explicit selection")
	fs.Parse(args)

	if fs.NArg() == 0 {
		return fmt.Errorf("no words given")
	}
	cfg, _, err := loadConfig(fs, *configPath, nil)
	if err != nil {
		return err
	}
	res, err := loadResolver(cfg)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	for _, word := range fs.Args() {
		resolve := res.Resolve
		if *selection {
			resolve = res.ResolveSelection
		}
		result, err := resolve(word)
		if resolver.IsNotFound(err) {
			fmt.Printf("%s: not found\n", word)
			continue
		}
		if err != nil {
			return err
		}
		if err := enc.Encode(result); err != nil {
			return err
		}
	}
	return nil
}

func runAnnotate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("annotate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a YAML config file")
	urlFlag := fs.String("url", "", "URL of the article to annotate")
	fileFlag := fs.String("file", "", "Path of a saved HTML page to annotate")
	dbFlag := fs.String("db", "", "Path to SQLite database (defaults to stats.sqlite_path)")
	dryRun := fs.Bool("dry-run", false, "Print the resolved words of each sentence without storing them")
	fs.Parse(args)

	if (*urlFlag == "") == (*fileFlag == "") {
		return fmt.Errorf("provide exactly one of -url or -file")
	}
	cfg, logger, err := loadConfig(fs, *configPath, func(cfg *config.Config, set map[string]bool) {
		if set["db"] {
			cfg.Stats.SQLitePath = *dbFlag
		}
	})
	if err != nil {
		return err
	}
	res, err := loadResolver(cfg)
	if err != nil {
		return err
	}

	var article reader.Article
	sourceType := "website_article"
	if *urlFlag != "" {
		fmt.Printf("Fetching %s...\n", *urlFlag)
		article, err = reader.FetchArticle(ctx, *urlFlag)
	} else {
		sourceType = "local_file"
		article, err = readArticleFile(*fileFlag)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Title: %s\n", article.Title)
	fmt.Printf("Extracted Text Length: %d chars\n", len([]rune(article.Text)))

	scanner := reader.NewScanner(res)
	if *dryRun {
		for _, sentence := range scanner.ScanDocument(article.Text) {
			words := make([]string, 0, len(sentence.Tokens))
			for _, tok := range sentence.Tokens {
				words = append(words, tok.Surface)
			}
			fmt.Printf("%s\n  %s\n", strings.TrimSpace(sentence.Text), strings.Join(words, " "))
		}
		return nil
	}

	conn, err := db.Open(db.SQLite, cfg.Stats.SQLitePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()
	if err := db.InitDB(conn); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	fmt.Printf("Database initialized at %s\n", cfg.Stats.SQLitePath)

	sourceID, err := db.CreateOrGetSource(conn, sourceType, article.Title, article.Byline, article.SiteName, article.URL, "")
	if err != nil {
		return fmt.Errorf("failed to persist source: %w", err)
	}
	fmt.Printf("Source saved with ID: %d\n", sourceID)

	sentences := reader.SplitSentences(article.Text)
	fmt.Printf("Split %d sentences.\n", len(sentences))

	ingester := ingest.NewIngester(conn, scanner)
	ingester.Logger = logger
	linkCount, err := ingester.Ingest(ctx, sourceID, sentences)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	fmt.Printf("Processing complete. Linked %d word occurrences.\n", linkCount)

	words, err := db.GetWordsBySource(conn, sourceID)
	if err != nil {
		return err
	}
	for i, w := range words {
		if i == 10 {
			break
		}
		fmt.Printf("  %s\t%s\t%s\n", w.Word, w.Pinyin, w.Jyutping)
	}
	return nil
}

func readArticleFile(path string) (reader.Article, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return reader.Article{}, err
	}
	body, err := os.ReadFile(abs)
	if err != nil {
		return reader.Article{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return reader.ParseArticle(body, &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)})
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a YAML config file")
	addr := fs.String("addr", "", "Listen address (defaults to server.addr)")
	fs.Parse(args)

	cfg, logger, err := loadConfig(fs, *configPath, func(cfg *config.Config, set map[string]bool) {
		if set["addr"] {
			cfg.Server.Addr = *addr
		}
	})
	if err != nil {
		return err
	}
	res, err := loadResolver(cfg)
	if err != nil {
		return err
	}

	local, err := stats.OpenSQLite(cfg.Stats.SQLitePath)
	if err != nil {
		return fmt.Errorf("failed to open stats database: %w", err)
	}
	defer local.Close()

	var st stats.Store = local
	myCfg, err := cfg.MySQL()
	if err != nil {
		return err
	}
	if myCfg != nil {
		remote, err := stats.OpenMySQL(ctx, myCfg)
		if err != nil {
			logger.Warnf("MySQL stats unavailable, using %s only: %v", cfg.Stats.SQLitePath, err)
		} else {
			defer remote.Close()
			st = &stats.FallbackStore{Remote: remote, Local: local, Logger: logger}
		}
	}

	return server.New(res, st, logger).ListenAndServe(ctx, cfg.Server.Addr)
}

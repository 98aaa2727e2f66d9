package dictionary

import (
	"context"
	"errors"
	"fmt"

	"github.com/japaniel/hoverdict/pkg/logging"
)

// BuildMandarin loads the Mandarin tuple payload into a Dictionary.
func BuildMandarin(path string, opts Options) (Dictionary, error) {
	entries, err := LoadMandarin(path)
	if err != nil {
		return nil, err
	}
	d := New()
	for _, e := range entries {
		if err := opts.normalize(e, true); err != nil {
			return nil, fmt.Errorf("normalize %s: %w", e.Traditional, err)
		}
		d.Add(e)
	}
	return d, nil
}

// BuildCantonese parses the main and readings lexicons and merges the readings
// into the main table. The readings table is not retained.
func BuildCantonese(mainPath, readingsPath string, opts Options) (Dictionary, error) {
	main, err := loadCantonese(mainPath, opts)
	if err != nil {
		return nil, err
	}
	readings, err := loadCantonese(readingsPath, opts)
	if err != nil {
		return nil, err
	}
	MergeReadings(main, readings)
	return main, nil
}

// Source locates one raw input; URL is only consulted when downloads are enabled.
type Source struct {
	Path string
	URL  string
}

// BuildConfig describes one full pipeline run.
type BuildConfig struct {
	Mandarin          Source
	CantoneseMain     Source
	CantoneseReadings Source

	MandarinOut  string
	CantoneseOut string

	Download bool
	Options  Options
	Logger   logging.Logger
}

// Report holds the stats of every table that was written.
type Report struct {
	Mandarin  *Stats
	Cantonese *Stats
}

// Build runs the Mandarin and Cantonese builds independently. A failed build
// never writes its output; the errors of both builds are joined.
func Build(ctx context.Context, cfg BuildConfig) (Report, error) {
	log := logging.OrNop(cfg.Logger)
	var report Report
	var errs []error

	if err := ensureAll(ctx, cfg.Download, cfg.Mandarin); err != nil {
		errs = append(errs, fmt.Errorf("mandarin: %w", err))
	} else if stats, err := buildOne(cfg.MandarinOut, func() (Dictionary, error) {
		return BuildMandarin(cfg.Mandarin.Path, cfg.Options)
	}); err != nil {
		errs = append(errs, fmt.Errorf("mandarin: %w", err))
	} else {
		report.Mandarin = &stats
		log.Infof("mandarin: %d words, %d entries (%d with definitions) -> %s",
			stats.Words, stats.Entries, stats.Defined, cfg.MandarinOut)
	}

	if err := ensureAll(ctx, cfg.Download, cfg.CantoneseMain, cfg.CantoneseReadings); err != nil {
		errs = append(errs, fmt.Errorf("cantonese: %w", err))
	} else if stats, err := buildOne(cfg.CantoneseOut, func() (Dictionary, error) {
		return BuildCantonese(cfg.CantoneseMain.Path, cfg.CantoneseReadings.Path, cfg.Options)
	}); err != nil {
		errs = append(errs, fmt.Errorf("cantonese: %w", err))
	} else {
		report.Cantonese = &stats
		log.Infof("cantonese: %d words, %d entries (%d with definitions) -> %s",
			stats.Words, stats.Entries, stats.Defined, cfg.CantoneseOut)
	}

	for _, err := range errs {
		log.Errorf("%v", err)
	}
	return report, errors.Join(errs...)
}

func ensureAll(ctx context.Context, download bool, sources ...Source) error {
	for _, s := range sources {
		if s.Path == "" {
			return &SourceMissingError{Path: "(unset)"}
		}
		u := ""
		if download {
			u = s.URL
		}
		if err := EnsureSource(ctx, s.Path, u); err != nil {
			return err
		}
	}
	return nil
}

func buildOne(out string, build func() (Dictionary, error)) (Stats, error) {
	if out == "" {
		return Stats{}, errors.New("no output path configured")
	}
	d, err := build()
	if err != nil {
		return Stats{}, err
	}
	if err := Save(out, d); err != nil {
		return Stats{}, fmt.Errorf("save %s: %w", out, err)
	}
	return d.Stats(), nil
}

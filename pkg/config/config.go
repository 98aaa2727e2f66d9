// Package config loads the hoverdict YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"

	"github.com/japaniel/hoverdict/pkg/dictionary"
	"github.com/japaniel/hoverdict/pkg/logging"
)

// Source is the location of one raw dictionary source.
type Source struct {
	Path string `yaml:"path"`
	URL  string `yaml:"url,omitempty"`
}

type Sources struct {
	Mandarin          Source `yaml:"mandarin"`
	CantoneseMain     Source `yaml:"cantonese_main"`
	CantoneseReadings Source `yaml:"cantonese_readings"`
}

type Output struct {
	Mandarin  string `yaml:"mandarin"`
	Cantonese string `yaml:"cantonese"`
}

type Build struct {
	FillSimplified bool `yaml:"fill_simplified"`
	FillPinyin     bool `yaml:"fill_pinyin"`
	Download       bool `yaml:"download"`
}

// Stats selects where lookup frequencies are stored. When MySQLDSN is set,
// SQLitePath is the fallback store.
type Stats struct {
	SQLitePath string `yaml:"sqlite_path"`
	MySQLDSN   string `yaml:"mysql_dsn,omitempty"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Log struct {
	Level string `yaml:"level"`
}

type Config struct {
	Sources Sources `yaml:"sources"`
	Output  Output  `yaml:"output"`
	Build   Build   `yaml:"build"`
	Stats   Stats   `yaml:"stats"`
	Server  Server  `yaml:"server"`
	Log     Log     `yaml:"log"`
}

// Default returns the configuration used when no file is given. Source
// paths follow the upstream file names.
func Default() Config {
	return Config{
		Sources: Sources{
			Mandarin:          Source{Path: "data/cedict.json"},
			CantoneseMain:     Source{Path: "data/cccanto-webdist.txt"},
			CantoneseReadings: Source{Path: "data/cccedict-canto-readings.txt"},
		},
		Output: Output{
			Mandarin:  "dist/mandarin.json",
			Cantonese: "dist/cantonese.json",
		},
		Stats:  Stats{SQLitePath: "hoverdict.db"},
		Server: Server{Addr: ":8080"},
		Log:    Log{Level: "info"},
	}
}

// Load reads path over Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields every command relies on.
func (c Config) Validate() error {
	var errs []error
	for _, s := range []struct {
		name string
		src  Source
	}{
		{"sources.mandarin", c.Sources.Mandarin},
		{"sources.cantonese_main", c.Sources.CantoneseMain},
		{"sources.cantonese_readings", c.Sources.CantoneseReadings},
	} {
		if s.src.Path == "" {
			errs = append(errs, fmt.Errorf("%s.path must be set", s.name))
		}
	}
	if c.Output.Mandarin == "" {
		errs = append(errs, errors.New("output.mandarin must be set"))
	}
	if c.Output.Cantonese == "" {
		errs = append(errs, errors.New("output.cantonese must be set"))
	}
	if c.Stats.MySQLDSN != "" {
		if _, err := mysql.ParseDSN(c.Stats.MySQLDSN); err != nil {
			errs = append(errs, fmt.Errorf("stats.mysql_dsn: %w", err))
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// MySQL returns the parsed stats DSN, or nil when MySQL is not configured.
func (c Config) MySQL() (*mysql.Config, error) {
	if c.Stats.MySQLDSN == "" {
		return nil, nil
	}
	return mysql.ParseDSN(c.Stats.MySQLDSN)
}

// BuildConfig maps the file onto a dictionary build run. Normalizers are
// left for the caller to attach.
func (c Config) BuildConfig() dictionary.BuildConfig {
	return dictionary.BuildConfig{
		Mandarin:          dictionary.Source(c.Sources.Mandarin),
		CantoneseMain:     dictionary.Source(c.Sources.CantoneseMain),
		CantoneseReadings: dictionary.Source(c.Sources.CantoneseReadings),
		MandarinOut:       c.Output.Mandarin,
		CantoneseOut:      c.Output.Cantonese,
		Download:          c.Build.Download,
	}
}

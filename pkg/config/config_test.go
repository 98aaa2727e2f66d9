package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hoverdict.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
sources:
  mandarin:
    path: raw/cedict.json
    url: https://example.com/cedict.json.gz
output:
  cantonese: out/yue.json
build:
  fill_pinyin: true
  download: true
stats:
  mysql_dsn: "user:secret@tcp(db:3306)/hoverdict"
log:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sources.Mandarin.Path != "raw/cedict.json" || cfg.Sources.Mandarin.URL == "" {
		t.Fatalf("unexpected mandarin source %+v", cfg.Sources.Mandarin)
	}
	if cfg.Sources.CantoneseMain.Path != Default().Sources.CantoneseMain.Path {
		t.Fatalf("unset keys should keep their defaults, got %+v", cfg.Sources.CantoneseMain)
	}
	if cfg.Output.Cantonese != "out/yue.json" || cfg.Output.Mandarin != "dist/mandarin.json" {
		t.Fatalf("unexpected output %+v", cfg.Output)
	}
	if !cfg.Build.FillPinyin || cfg.Build.FillSimplified || !cfg.Build.Download {
		t.Fatalf("unexpected build flags %+v", cfg.Build)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	my, err := cfg.MySQL()
	if err != nil || my == nil {
		t.Fatalf("MySQL() = %v, %v", my, err)
	}
	if my.Addr != "db:3306" || my.DBName != "hoverdict" {
		t.Fatalf("unexpected mysql config %+v", my)
	}

	bc := cfg.BuildConfig()
	if bc.Mandarin.URL != "https://example.com/cedict.json.gz" || !bc.Download || bc.CantoneseOut != "out/yue.json" {
		t.Fatalf("unexpected build config %+v", bc)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("empty file should yield defaults, got %+v", cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "sources:\n  mandrin:\n    path: x\n"))
	if err == nil || !strings.Contains(err.Error(), "mandrin") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Sources.CantoneseReadings.Path = ""
	cfg.Output.Mandarin = ""
	cfg.Stats.MySQLDSN = "not a dsn"
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"cantonese_readings", "output.mandarin", "mysql_dsn", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

package dictionary

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureSource_LocalCache(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "cedict.json")
	if err := os.WriteFile(dest, []byte("[]"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The URL is unreachable; an existing file must short-circuit the download.
	if err := EnsureSource(context.Background(), dest, "http://127.0.0.1:1/never"); err != nil {
		t.Fatalf("EnsureSource failed with local file: %v", err)
	}
}

func TestEnsureSource_MissingWithoutURL(t *testing.T) {
	err := EnsureSource(context.Background(), filepath.Join(t.TempDir(), "absent.u8"), "")
	if !IsSourceMissing(err) {
		t.Fatalf("expected SourceMissingError, got %v", err)
	}
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func tgzBytes(t *testing.T, name string, data []byte) []byte {
	t.Helper()
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	if err := tw.WriteHeader(&tar.Header{Name: "dir/", Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
		t.Fatalf("tar dir header: %v", err)
	}
	if err := tw.WriteHeader(&tar.Header{Name: "dir/" + name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(data))}); err != nil {
		t.Fatalf("tar header: %v", err)
	}
	if _, err := tw.Write(data); err != nil {
		t.Fatalf("tar write: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	return gzipBytes(t, tarBuf.Bytes())
}

func TestEnsureSource_Download(t *testing.T) {
	payload := []byte("你 你 [ni3] {nei5}\n")
	mux := http.NewServeMux()
	mux.HandleFunc("/plain.u8", func(w http.ResponseWriter, r *http.Request) { w.Write(payload) })
	mux.HandleFunc("/packed.u8.gz", func(w http.ResponseWriter, r *http.Request) { w.Write(gzipBytes(t, payload)) })
	mux.HandleFunc("/bundle.tgz", func(w http.ResponseWriter, r *http.Request) { w.Write(tgzBytes(t, "readings.u8", payload)) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	for _, name := range []string{"plain.u8", "packed.u8.gz", "bundle.tgz"} {
		t.Run(name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "nested", "source.u8")
			if err := EnsureSource(context.Background(), dest, srv.URL+"/"+name); err != nil {
				t.Fatalf("EnsureSource: %v", err)
			}
			got, err := os.ReadFile(dest)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("downloaded content = %q; want %q", got, payload)
			}
			leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(dest), "*.part"))
			if len(leftovers) != 0 {
				t.Fatalf("partial files left behind: %v", leftovers)
			}
		})
	}
}

func TestEnsureSource_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "cedict.json")
	err := EnsureSource(context.Background(), dest, srv.URL+"/cedict.json")
	if !IsSourceMissing(err) {
		t.Fatalf("expected SourceMissingError, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("failed download must not create %s", dest)
	}
}

func TestEnsureSource_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "cedict.json")
	if err := EnsureSource(context.Background(), dest, srv.URL+"/cedict.json"); err == nil {
		t.Fatalf("expected error for empty download")
	}
}

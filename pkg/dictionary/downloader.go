package dictionary

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// HTTPClient is used for source downloads; tests may swap it.
var HTTPClient = &http.Client{Timeout: 5 * time.Minute}

// EnsureSource checks that the raw source at dest exists. If it does not and
// srcURL is set, the source is downloaded (plain, .gz, or .tgz/.tar.gz) and
// written atomically. A missing source with no URL is a SourceMissingError.
func EnsureSource(ctx context.Context, dest, srcURL string) error {
	if _, err := os.Stat(dest); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return &SourceMissingError{Path: dest, Err: err}
	}

	if srcURL == "" {
		return &SourceMissingError{Path: dest, Err: os.ErrNotExist}
	}

	if err := download(ctx, srcURL, dest); err != nil {
		return &SourceMissingError{Path: dest, Err: fmt.Errorf("download %s: %w", srcURL, err)}
	}
	return nil
}

func download(ctx context.Context, srcURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "hoverdict-build")

	resp, err := HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	name := archiveName(srcURL)
	var body io.Reader = resp.Body
	switch {
	case strings.HasSuffix(name, ".tgz") || strings.HasSuffix(name, ".tar.gz"):
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		body, err = firstRegularFile(tar.NewReader(gz))
		if err != nil {
			return err
		}
	case strings.HasSuffix(name, ".gz"):
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		body = gz
	}

	return writeAtomic(dest, body)
}

func archiveName(srcURL string) string {
	if u, err := url.Parse(srcURL); err == nil {
		return strings.ToLower(path.Base(u.Path))
	}
	return strings.ToLower(srcURL)
}

func firstRegularFile(tr *tar.Reader) (io.Reader, error) {
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("no regular file found in downloaded archive")
		}
		if err != nil {
			return nil, fmt.Errorf("error reading tar archive: %w", err)
		}
		if header.Typeflag == tar.TypeReg {
			return tr, nil
		}
	}
}

func writeAtomic(dest string, r io.Reader) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".*.part")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && n == 0 {
		err = fmt.Errorf("downloaded source is empty")
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return os.Rename(tmpName, dest)
}

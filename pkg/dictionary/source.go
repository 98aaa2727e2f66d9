package dictionary

import (
	"io"
	"os"

	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// sourceReader decodes a raw source as UTF-8, honouring a leading byte order mark
// (UTF-8 or UTF-16) when one is present.
type sourceReader struct {
	io.Reader
	f *os.File
}

func openSource(path string) (*sourceReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SourceMissingError{Path: path, Err: err}
	}
	dec := xunicode.BOMOverride(xunicode.UTF8.NewDecoder())
	return &sourceReader{Reader: transform.NewReader(f, dec), f: f}, nil
}

func (s *sourceReader) Close() error {
	return s.f.Close()
}

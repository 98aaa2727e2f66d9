package dictionary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// mandarinShape is one accepted layout of the Mandarin payload.
type mandarinShape struct {
	name   string
	decode func(data []byte) ([]json.RawMessage, bool)
}

// mandarinShapes is tried in order; the first shape that yields tuples wins.
// Upstream exports have moved between a bare array and several wrapper objects.
var mandarinShapes = []mandarinShape{
	{name: "array", decode: decodeTopLevelArray},
	{name: "entries", decode: decodeWrapped("entries")},
	{name: "words", decode: decodeWrapped("words")},
	{name: "data", decode: decodeWrapped("data")},
}

func decodeTopLevelArray(data []byte) ([]json.RawMessage, bool) {
	if len(data) == 0 || data[0] != '[' {
		return nil, false
	}
	var tuples []json.RawMessage
	if err := json.Unmarshal(data, &tuples); err != nil {
		return nil, false
	}
	return tuples, true
}

func decodeWrapped(key string) func([]byte) ([]json.RawMessage, bool) {
	return func(data []byte) ([]json.RawMessage, bool) {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, false
		}
		raw, ok := obj[key]
		if !ok {
			return nil, false
		}
		var tuples []json.RawMessage
		if err := json.Unmarshal(raw, &tuples); err != nil || len(tuples) == 0 {
			return nil, false
		}
		return tuples, true
	}
}

// LoadMandarin reads a Mandarin payload of [traditional, simplified, romanisation,
// definitions] tuples and returns one normalised entry per usable tuple.
// Short or malformed tuples are skipped; a payload with no recognisable array is a ParseError.
func LoadMandarin(path string) ([]*Entry, error) {
	src, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, &SourceMissingError{Path: path, Err: err}
	}
	return ParseMandarin(path, data)
}

// ParseMandarin is LoadMandarin over an in-memory payload; name is used in errors.
func ParseMandarin(name string, data []byte) ([]*Entry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, &ParseError{Path: name, Err: errors.New("empty payload")}
	}

	for _, shape := range mandarinShapes {
		tuples, ok := shape.decode(data)
		if !ok {
			continue
		}
		entries := make([]*Entry, 0, len(tuples))
		for _, raw := range tuples {
			if e, ok := parseMandarinTuple(raw); ok {
				entries = append(entries, e)
			}
		}
		return entries, nil
	}

	names := make([]string, len(mandarinShapes))
	for i, s := range mandarinShapes {
		names[i] = s.name
	}
	return nil, &ParseError{
		Path: name,
		Err:  fmt.Errorf("no tuple array found (tried %s)", strings.Join(names, ", ")),
	}
}

func parseMandarinTuple(raw json.RawMessage) (*Entry, bool) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) < 4 {
		return nil, false
	}
	e := &Entry{
		Traditional:  strings.TrimSpace(coerceString(fields[0])),
		Simplified:   strings.TrimSpace(coerceString(fields[1])),
		Romanisation: strings.TrimSpace(coerceString(fields[2])),
		Definitions:  coerceDefinitions(fields[3]),
	}
	if e.Traditional == "" && e.Simplified == "" {
		return nil, false
	}
	return e, true
}

func decodeValue(raw json.RawMessage) (interface{}, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

func scalarString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

// coerceString turns a scalar JSON value into its text; null and composites become "".
func coerceString(raw json.RawMessage) string {
	v, ok := decodeValue(raw)
	if !ok {
		return ""
	}
	return scalarString(v)
}

// coerceDefinitions accepts a single gloss or a list of glosses.
func coerceDefinitions(raw json.RawMessage) []string {
	v, ok := decodeValue(raw)
	if !ok {
		return []string{}
	}
	var items []interface{}
	switch x := v.(type) {
	case []interface{}:
		items = x
	default:
		items = []interface{}{x}
	}
	defs := make([]string, 0, len(items))
	for _, item := range items {
		defs = append(defs, scalarString(item))
	}
	return cleanDefinitions(defs)
}

// cleanDefinitions drops blank glosses, keeping the others verbatim and in
// source order.
func cleanDefinitions(raw []string) []string {
	defs := make([]string, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) != "" {
			defs = append(defs, s)
		}
	}
	return defs
}

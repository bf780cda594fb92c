// Package searchindex reads and writes documentation search index payloads:
// a JS global assignment (or plain JSON document) holding {"docs": [records...]}.
package searchindex

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"unicode/utf8"
)

const DefaultVariable = "documenterSearchIndex"

var (
	ErrMalformedPayload = errors.New("malformed search index payload")
	ErrMissingDocs      = errors.New("search index payload has no docs key")
	ErrInvalidVariable  = errors.New("invalid javascript variable name")
	ErrInvalidUTF8      = errors.New("record field is not valid UTF-8")
)

var (
	jsIdentifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
	jsAssignment = regexp.MustCompile(`^(?:var|let|const)\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=`)
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode parses a payload. The JS form returns the assigned variable name,
// the plain JSON form returns an empty one. Docs is never nil on success.
func Decode(data []byte) (*Index, string, error) {
	body := bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))

	var variable string
	if len(body) == 0 || body[0] != '{' {
		match := jsAssignment.FindSubmatchIndex(body)
		if match == nil {
			return nil, "", fmt.Errorf("%w: expected a variable assignment or a JSON object", ErrMalformedPayload)
		}
		variable = string(body[match[2]:match[3]])
		body = bytes.TrimSpace(body[match[1]:])
		body = bytes.TrimSpace(bytes.TrimSuffix(body, []byte(";")))
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	rawDocs, ok := raw["docs"]
	if !ok {
		return nil, "", ErrMissingDocs
	}

	var docs []Record
	if err := json.Unmarshal(rawDocs, &docs); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	// "docs": null
	if docs == nil {
		docs = []Record{}
	}

	return &Index{Docs: docs}, variable, nil
}

// EncodeJS writes the payload as `var <variable> = {"docs":\n[...]\n}\n`.
// An empty variable falls back to DefaultVariable.
func EncodeJS(w io.Writer, variable string, idx *Index) error {
	if variable == "" {
		variable = DefaultVariable
	}
	if !jsIdentifier.MatchString(variable) {
		return fmt.Errorf("%w: %q", ErrInvalidVariable, variable)
	}

	docs, err := marshalDocs(idx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.Grow(len(docs) + len(variable) + 24)
	buf.WriteString("var ")
	buf.WriteString(variable)
	buf.WriteString(" = {\"docs\":\n")
	buf.Write(docs)
	buf.WriteString("\n}\n")

	_, err = w.Write(buf.Bytes())
	return err
}

// EncodeJSON writes the payload as a plain JSON document.
func EncodeJSON(w io.Writer, idx *Index) error {
	docs, err := marshalDocs(idx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.Grow(len(docs) + 10)
	buf.WriteString(`{"docs":`)
	buf.Write(docs)
	buf.WriteString("}\n")

	_, err = w.Write(buf.Bytes())
	return err
}

// marshalDocs renders the record array without HTML escaping so that
// characters like '&' and '<' survive unchanged. Invalid UTF-8 is rejected
// rather than replaced, so encoded payloads always decode to the same records.
func marshalDocs(idx *Index) ([]byte, error) {
	docs := []Record{}
	if idx != nil && idx.Docs != nil {
		docs = idx.Docs
	}

	for i, record := range docs {
		for _, field := range []string{record.Location, record.Page, record.Title, record.Text, string(record.Category)} {
			if !utf8.ValidString(field) {
				return nil, fmt.Errorf("record %d: %w", i, ErrInvalidUTF8)
			}
		}
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(docs); err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

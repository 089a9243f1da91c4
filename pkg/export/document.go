// Package export reads planning documents and writes finished schedules as
// JSON, CSV, a text summary or an HTML chart.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/hems/core/model"
)

// Document is one planning request: the horizon plus the parameters of the
// building.
type Document struct {
	Input  model.Input  `json:"input"`
	Config model.Config `json:"config"`
}

// Format names a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from the file extension, JSON by default.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// DecodeDocument parses a document. The config section is decoded over
// model.DefaultConfig so omitted keys keep their defaults, and slots missing
// an end time get model.DefaultSlotLength. Errors wrap model.ErrInput.
func DecodeDocument(r io.Reader, format Format) (Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("%w: read document: %v", model.ErrInput, err)
	}
	if format == FormatYAML {
		raw, err = yamlToJSON(raw)
		if err != nil {
			return Document{}, fmt.Errorf("%w: parse yaml: %v", model.ErrInput, err)
		}
	}
	doc := Document{Config: model.DefaultConfig()}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%w: parse document: %v", model.ErrInput, err)
	}
	doc.Input.Normalize()
	return doc, nil
}

// ReadDocument opens and decodes the document at path.
func ReadDocument(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", model.ErrInput, err)
	}
	defer f.Close()
	return DecodeDocument(f, FormatFromPath(path))
}

// yamlToJSON re-encodes YAML so the json tags of the model types apply to
// both formats.
func yamlToJSON(in []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(in, &v); err != nil {
		return nil, err
	}
	if v == nil {
		v = map[string]any{}
	}
	return json.Marshal(v)
}

// WriteJSON writes the result as indented JSON.
func WriteJSON(w io.Writer, res model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

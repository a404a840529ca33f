package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/amazon-ion/ion-go/ion"
	yaml "gopkg.in/yaml.v3"

	"reflow/config"
)

// fieldSymbols are struct field names of the model. Binary output declares
// them in its local symbol table up front so every value refers to a symbol
// id instead of repeating names.
var fieldSymbols = []string{
	"book", "id", "title", "authors", "language", "source", "partial",
	"fonts", "family", "size", "style",
	"pages", "number", "reparse", "base", "instructions",
	"kind", "box", "x", "y", "w", "h", "text", "font", "image",
	"anchors", "page", "is_base",
	"toc", "target", "url", "children",
}

func localSymbols() ion.SymbolTable {
	b := ion.NewSymbolTableBuilder()
	for _, s := range fieldSymbols {
		_, _ = b.Add(s)
	}
	return b.Build()
}

// Marshal encodes model in requested format.
func Marshal(m *Model, format config.ExportFormat) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case config.ExportFormatIon:
		data, err = ion.MarshalText(m)
	case config.ExportFormatIonbin:
		data, err = ion.MarshalBinaryLST(m, localSymbols())
	case config.ExportFormatYaml:
		data, err = yaml.Marshal(m)
	default:
		return nil, fmt.Errorf("unsupported export format %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to encode %s: %w", format, err)
	}
	return data, nil
}

// Write encodes model into w.
func Write(w io.Writer, m *Model, format config.ExportFormat) error {
	data, err := Marshal(m, format)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Unmarshal decodes model previously produced by Marshal. Both Ion encodings
// are accepted for either Ion format.
func Unmarshal(data []byte, format config.ExportFormat) (*Model, error) {
	m := &Model{}
	switch format {
	case config.ExportFormatIon, config.ExportFormatIonbin:
		dec := ion.NewDecoder(ion.NewReader(bytes.NewReader(data)))
		if err := dec.DecodeTo(m); err != nil {
			return nil, fmt.Errorf("unable to decode ion: %w", err)
		}
	case config.ExportFormatYaml:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(m); err != nil {
			return nil, fmt.Errorf("unable to decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported export format %s", format)
	}
	return m, nil
}

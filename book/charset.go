package book

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
)

var (
	utf8BOM = []byte{0xEF, 0xBB, 0xBF}
	xmlDecl = regexp.MustCompile(`^\s*<\?xml[^>]*\bencoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)
)

// toUTF8 converts markup to UTF-8. Encoding is taken from BOM, XML
// declaration, HTML meta element or content type, in that order. Valid UTF-8
// is kept when nothing says otherwise.
func toUTF8(data []byte, contentType string) ([]byte, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		return data[len(utf8BOM):], nil
	}
	if bytes.HasPrefix(data, []byte{0xFE, 0xFF}) || bytes.HasPrefix(data, []byte{0xFF, 0xFE}) {
		out, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("unable to decode UTF-16 markup: %w", err)
		}
		return out, nil
	}

	if m := xmlDecl.FindSubmatch(data[:min(len(data), 256)]); m != nil {
		r, err := charset.NewReaderLabel(string(m[1]), bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("unsupported markup encoding %q: %w", m[1], err)
		}
		return io.ReadAll(r)
	}

	e, name, certain := charset.DetermineEncoding(data, contentType)
	if name == "utf-8" || !certain && utf8.Valid(data) {
		return data, nil
	}
	out, err := e.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s markup: %w", name, err)
	}
	return out, nil
}

package book

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/hidez8891/zip"

	"reflow/config"
	"reflow/state"
)

type entry struct {
	name    string
	content []byte
}

func testContext(t *testing.T, cfg *config.Config) context.Context {
	t.Helper()
	return state.ContextWith(context.Background(), &state.LocalEnv{Cfg: cfg})
}

func pngData(t *testing.T, w, h int) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func zipData(t *testing.T, entries []entry) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for _, e := range entries {
		h := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		if e.name == "mimetype" {
			h.Method = zip.Store
		}
		fw, err := w.CreateHeader(h)
		if err != nil {
			t.Fatalf("Failed to create %s in zip: %v", e.name, err)
		}
		if _, err := fw.Write(e.content); err != nil {
			t.Fatalf("Failed to write %s: %v", e.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}

const (
	testContainer = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`

	testOPF = `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <dc:creator>Jane Roe</dc:creator>
    <dc:language>en</dc:language>
    <dc:identifier id="isbn">978-3-16-148410-0</dc:identifier>
    <dc:identifier id="bookid">urn:uuid:0c9a5e38-6f2b-4b8e-9a53-7e2d1f3c4b5a</dc:identifier>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="ch1" href="Text/chapter%201.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="Text/ch2.xhtml" media-type="application/xhtml+xml"/>
    <item id="pic" href="Images/pic.png" media-type="image/png"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="ch1"/>
    <itemref idref="missing"/>
    <itemref idref="ch2"/>
  </spine>
</package>`

	testChapter1 = `<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>One</title></head>
<body><h1 id="start">Chapter One</h1><p>First chapter text.</p><p><img src="../Images/pic.png"/></p>
<p><a href="ch2.xhtml#x">next</a></p></body></html>`

	testChapter2 = `<html><body><h1>Chapter Two</h1><p id="x">Second chapter text.</p></body></html>`

	testNCX = `<?xml version="1.0" encoding="utf-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1"><navMap>
  <navPoint id="n1"><navLabel><text>Chapter One</text></navLabel><content src="Text/chapter%201.xhtml"/>
    <navPoint id="n2"><navLabel><text>Middle</text></navLabel><content src="Text/ch2.xhtml#x"/></navPoint>
  </navPoint>
</navMap></ncx>`
)

func epubData(t *testing.T) []byte {
	t.Helper()
	return zipData(t, []entry{
		{"mimetype", []byte("application/epub+zip")},
		{"META-INF/container.xml", []byte(testContainer)},
		{"OEBPS/content.opf", []byte(testOPF)},
		{"OEBPS/toc.ncx", []byte(testNCX)},
		{"OEBPS/Text/chapter 1.xhtml", []byte(testChapter1)},
		{"OEBPS/Text/ch2.xhtml", []byte(testChapter2)},
		{"OEBPS/Images/pic.png", pngData(t, 40, 30)},
	})
}

package reader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"reflow/config"
)

// Values holds variables available for output name template expansion.
type Values struct {
	Context    string
	Title      string
	Author     string // first author
	Authors    []string
	Language   string
	ID         string
	Format     string
	SourceFile string
	Page       int
	Pages      int
	Base       string // sub-document of the page
}

func (s *Session) values(name config.TemplateFieldName, n int) Values {
	v := Values{
		Context:    string(name),
		Title:      s.Book.Title,
		Authors:    s.Book.Authors,
		Language:   s.Book.Language,
		ID:         s.Book.ID.String(),
		Format:     s.Book.Format.String(),
		SourceFile: strings.TrimSuffix(filepath.Base(s.Book.Source), filepath.Ext(s.Book.Source)),
		Page:       n,
		Pages:      s.Doc.PageCount(),
	}
	if len(v.Authors) > 0 {
		v.Author = v.Authors[0]
	}
	if n >= 1 && n <= v.Pages {
		v.Base = s.Doc.Base(n)
	}
	return v
}

func expandTemplate(name config.TemplateFieldName, field string, v Values) (string, error) {
	funcMap := sprig.FuncMap()
	funcMap["slug"] = slug.Make

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// OutputName returns path of the file page n is written to. Name comes from
// the template (which may contain subdirectories), default scheme is
// "<source>-<page>".
func (s *Session) OutputName(tmpl string, n int, dst, ext string, log *zap.Logger) string {
	defaultName := filepath.Join(dst, config.CleanFileName(fmt.Sprintf("%s-%04d", s.values("", n).SourceFile, n))+ext)
	if len(tmpl) == 0 {
		return defaultName
	}

	expanded, err := expandTemplate(config.OutputNameTemplateFieldName, tmpl, s.values(config.OutputNameTemplateFieldName, n))
	if err != nil {
		log.Warn("Unable to prepare output filename", zap.Error(err))
		return defaultName
	}
	segments := splitPath(filepath.FromSlash(expanded))
	if len(segments) == 0 {
		return defaultName
	}

	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, dst)
	for _, segment := range segments {
		parts = append(parts, config.CleanFileName(segment))
	}
	parts[len(parts)-1] += ext
	return filepath.Join(parts...)
}

func splitPath(path string) []string {
	path = strings.TrimSuffix(path, string(os.PathSeparator))
	segments := make([]string, 0, 8)

	for head, tail := filepath.Split(path); tail != ""; head, tail = filepath.Split(head) {
		if tail != "." && tail != ".." {
			segments = slices.Insert(segments, 0, tail)
		}
		head = strings.TrimSuffix(head, string(os.PathSeparator))
		if head == "" {
			break
		}
	}
	return segments
}

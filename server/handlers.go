package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"reflow/config"
	"reflow/export"
	"reflow/layout"
	"reflow/preview"
	"reflow/reader"
	"reflow/state"
)

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// withBook calls fn with session of the book named by "path" query
// parameter.
func (s *Server) withBook(w http.ResponseWriter, r *http.Request, fn func(sess *reader.Session)) {
	name, err := s.bookPath(r.URL.Query().Get("path"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	e, err := s.cache.acquire(name)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, fs.ErrNotExist) {
			status = http.StatusNotFound
		}
		s.log.Warn("Unable to open book", zap.String("path", name), zap.Error(err))
		jsonError(w, err.Error(), status)
		return
	}
	defer s.cache.release(e)
	fn(e.session)
}

// withPage is withBook for requests addressing a page.
func (s *Server) withPage(w http.ResponseWriter, r *http.Request, fn func(sess *reader.Session, n int)) {
	n, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		jsonError(w, "bad page number", http.StatusBadRequest)
		return
	}
	s.withBook(w, r, func(sess *reader.Session) {
		if err := sess.CheckPage(n); err != nil {
			jsonError(w, err.Error(), http.StatusNotFound)
			return
		}
		fn(sess, n)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "books": s.cache.len()})
}

type bookResponse struct {
	export.Info
	Format  string `json:"format"`
	Pages   int    `json:"pages"`
	Toc     int    `json:"toc_entries"`
	Partial bool   `json:"partial"`
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	s.withBook(w, r, func(sess *reader.Session) {
		writeJSON(w, http.StatusOK, bookResponse{
			Info:    sess.Info(),
			Format:  sess.Book.Format.String(),
			Pages:   sess.Doc.PageCount(),
			Toc:     sess.TocCount(),
			Partial: sess.Doc.Partial(),
		})
	})
}

func (s *Server) handleToc(w http.ResponseWriter, r *http.Request) {
	s.withBook(w, r, func(sess *reader.Session) {
		toc := export.TocOf(sess.Toc)
		if toc == nil {
			toc = []export.TocEntry{}
		}
		writeJSON(w, http.StatusOK, toc)
	})
}

type destinationResponse struct {
	Target string      `json:"target"`
	Page   int         `json:"page,omitempty"`
	Box    *export.Box `json:"box,omitempty"`
	URL    string      `json:"url,omitempty"`
}

// handleResolve resolves "target", as a link on "page" when given.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("target")
	if len(target) == 0 {
		jsonError(w, "target is required", http.StatusBadRequest)
		return
	}
	s.withBook(w, r, func(sess *reader.Session) {
		var d *layout.Destination
		if p := q.Get("page"); len(p) > 0 {
			n, err := strconv.Atoi(p)
			if err != nil || sess.CheckPage(n) != nil {
				jsonError(w, "bad page number", http.StatusBadRequest)
				return
			}
			d = sess.Doc.ResolveLink(n, target)
		} else {
			d = sess.Doc.ResolveDestination(target)
		}
		switch {
		case d == nil:
			jsonError(w, "target not found", http.StatusNotFound)
		case d.IsExternal():
			writeJSON(w, http.StatusOK, destinationResponse{Target: target, URL: d.URL})
		default:
			writeJSON(w, http.StatusOK, destinationResponse{Target: target, Page: d.Page, Box: &export.Box{X: d.Box.X, Y: d.Box.Y, W: d.Box.W, H: d.Box.H}})
		}
	})
}

// handleReparse maps markup offset (saved bookmark) to page.
func (s *Server) handleReparse(w http.ResponseWriter, r *http.Request) {
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		jsonError(w, "bad offset", http.StatusBadRequest)
		return
	}
	s.withBook(w, r, func(sess *reader.Session) {
		writeJSON(w, http.StatusOK, map[string]int{"offset": offset, "page": sess.Doc.PageForReparse(offset)})
	})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	s.withPage(w, r, func(sess *reader.Session, n int) {
		writeJSON(w, http.StatusOK, export.PageOf(sess.Doc, n))
	})
}

type textResponse struct {
	Page      int      `json:"page"`
	Text      string   `json:"text"`
	Words     int      `json:"words"`
	Sentences []string `json:"sentences,omitempty"`
}

func (s *Server) handlePageText(w http.ResponseWriter, r *http.Request) {
	split, _ := strconv.ParseBool(r.URL.Query().Get("sentences"))
	s.withPage(w, r, func(sess *reader.Session, n int) {
		out, _, err := sess.PageText(n, " ")
		if err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp := textResponse{Page: n, Text: out}
		if resp.Words, err = sess.PageWords(n); err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if split {
			if resp.Sentences, err = sess.PageSentences(n, sess.Splitter(s.log)); err != nil {
				jsonError(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

// handlePageImage renders page, "format" (png or jpeg) and "scale" override
// preview configuration.
func (s *Server) handlePageImage(w http.ResponseWriter, r *http.Request) {
	env := state.EnvFromContext(s.ctx)
	conf := env.Cfg.Preview
	q := r.URL.Query()
	if f := q.Get("format"); len(f) > 0 {
		format, err := config.ParsePreviewFormat(f)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		conf.Format = format
	}
	if v := q.Get("scale"); len(v) > 0 {
		scale, err := strconv.ParseFloat(v, 64)
		if err != nil || !(scale > 0 && scale <= 8) {
			jsonError(w, "bad scale", http.StatusBadRequest)
			return
		}
		conf.Scale = scale
	}
	opts, err := preview.OptionsFromConfig(&env.Cfg.Layout, &conf)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.withPage(w, r, func(sess *reader.Session, n int) {
		img, err := preview.NewRenderer(sess.Metrics, opts, s.log).Render(sess.Doc, n)
		if err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/"+conf.Format.String())
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", fmt.Sprintf("page-%04d%s", n, conf.Format.Ext())))
		if err := preview.Encode(w, img, conf.Format, conf.JPEGQuality, int(float64(env.Cfg.Layout.DPI)*opts.Scale)); err != nil {
			s.log.Warn("Unable to send page image", zap.Int("page", n), zap.Error(err))
		}
	})
}

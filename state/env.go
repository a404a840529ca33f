// Package state defines shared program state.
package state

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"reflow/config"
	"reflow/layout"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// set from command line
	Overwrite bool
	CodePage  encoding.Encoding // forced encoding of non UTF-8 names in archives

	metricsOnce sync.Once
	metrics     *layout.OpenTypeMetrics
	metricsErr  error

	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
		e.restoreStdLog = nil
	}
}

// Metrics returns font metrics shared by all formatting done by the program,
// with replacement fonts from configuration loaded on first call.
func (e *LocalEnv) Metrics() (*layout.OpenTypeMetrics, error) {
	e.metricsOnce.Do(func() {
		m := layout.NewOpenTypeMetrics()
		if e.Cfg != nil {
			if e.metricsErr = loadFonts(m, &e.Cfg.Layout.Fonts); e.metricsErr != nil {
				return
			}
		}
		e.metrics = m
	})
	return e.metrics, e.metricsErr
}

func loadFonts(m *layout.OpenTypeMetrics, conf *config.FontsConfig) error {
	for _, f := range []struct {
		path  string
		mono  bool
		style layout.FontStyle
	}{
		{conf.Regular, false, 0},
		{conf.Bold, false, layout.Bold},
		{conf.Italic, false, layout.Italic},
		{conf.BoldItalic, false, layout.Bold | layout.Italic},
		{conf.Mono, true, 0},
	} {
		if len(f.path) == 0 {
			continue
		}
		data, err := os.ReadFile(f.path)
		if err != nil {
			return fmt.Errorf("unable to read font: %w", err)
		}
		if err := m.SetFontData(f.mono, f.style, data); err != nil {
			return fmt.Errorf("unable to load font %s: %w", f.path, err)
		}
	}
	return nil
}

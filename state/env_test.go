package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"reflow/config"
	"reflow/layout"
)

func TestContextWithEnv(t *testing.T) {
	env := EnvFromContext(ContextWithEnv(context.Background()))
	if env == nil {
		t.Fatal("EnvFromContext() returned nil")
	}
	if env.start.IsZero() {
		t.Error("Environment start time not set")
	}

	own := &LocalEnv{Overwrite: true}
	if got := EnvFromContext(ContextWith(context.Background(), own)); got != own || got.start.IsZero() {
		t.Error("ContextWith() must store given environment")
	}
}

func TestEnvFromContext_Missing(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when env not in context")
		}
	}()
	EnvFromContext(context.Background())
}

func TestLocalEnv_Uptime(t *testing.T) {
	env := EnvFromContext(ContextWithEnv(context.Background()))

	time.Sleep(10 * time.Millisecond)
	if uptime := env.Uptime(); uptime < 10*time.Millisecond {
		t.Errorf("Uptime() = %v, expected at least 10ms", uptime)
	}
}

func TestLocalEnv_StdLog(t *testing.T) {
	t.Run("with logger", func(t *testing.T) {
		env := &LocalEnv{
			Log: zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1))),
		}
		for i := range 3 {
			env.RedirectStdLog()
			if env.restoreStdLog == nil {
				t.Errorf("Iteration %d: restoreStdLog not set", i)
			}
			env.RestoreStdLog()
			if env.restoreStdLog != nil {
				t.Errorf("Iteration %d: restoreStdLog not cleared", i)
			}
		}
	})

	t.Run("without logger", func(t *testing.T) {
		env := &LocalEnv{}
		env.RedirectStdLog()
		if env.restoreStdLog != nil {
			t.Error("Expected restoreStdLog to remain nil")
		}
		env.RestoreStdLog()
	})
}

func TestLocalEnv_Metrics(t *testing.T) {
	t.Run("bundled fonts", func(t *testing.T) {
		env := &LocalEnv{Cfg: &config.Config{}}
		m, err := env.Metrics()
		if err != nil {
			t.Fatalf("Metrics() error = %v", err)
		}
		again, _ := env.Metrics()
		if m != again {
			t.Error("Metrics() must be created once")
		}
		if g := m.Measure(layout.Font{Family: "serif", Size: 10}, []byte("abc")); g.Width() <= 0 {
			t.Error("expected measurable text")
		}
	})

	t.Run("broken font", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.ttf")
		if err := os.WriteFile(bad, []byte("not a font"), 0644); err != nil {
			t.Fatal(err)
		}
		env := &LocalEnv{Cfg: &config.Config{Layout: config.LayoutConfig{Fonts: config.FontsConfig{Bold: bad}}}}
		if _, err := env.Metrics(); err == nil {
			t.Error("expected error for broken font file")
		}
	})
}

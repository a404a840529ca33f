package state

import (
	"context"
	"time"
)

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start: time.Now(),
	}
}

// ContextWith stores prepared environment in context. Used where environment
// is built outside of command line handling (server handlers, tests).
func ContextWith(ctx context.Context, env *LocalEnv) context.Context {
	if env.start.IsZero() {
		env.start = time.Now()
	}
	return context.WithValue(ctx, envKey{}, env)
}

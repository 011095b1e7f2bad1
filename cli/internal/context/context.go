// Package context carries the command line configuration through command contexts.
package context

import (
	"context"
	"sync"

	configv1 "ocm.software/open-component-model/appmodel/cli/configuration/v1"
)

type contextKey struct{}

// Context holds the state shared by all commands of one invocation.
type Context struct {
	mu     sync.RWMutex
	config *configv1.Config
}

func (c *Context) Config() *configv1.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// FromContext returns the Context stored in ctx or nil.
func FromContext(ctx context.Context) *Context {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(contextKey{}).(*Context)
	return c
}

func retrieveOrCreate(ctx context.Context) (context.Context, *Context) {
	if c := FromContext(ctx); c != nil {
		return ctx, c
	}
	c := &Context{}
	return context.WithValue(ctx, contextKey{}, c), c
}

func WithConfig(ctx context.Context, cfg *configv1.Config) context.Context {
	ctx, c := retrieveOrCreate(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = cfg
	return ctx
}

// ConfigFromContext returns the configuration of ctx, an empty one if none is stored.
func ConfigFromContext(ctx context.Context) *configv1.Config {
	if c := FromContext(ctx); c != nil {
		if cfg := c.Config(); cfg != nil {
			return cfg
		}
	}
	return &configv1.Config{}
}

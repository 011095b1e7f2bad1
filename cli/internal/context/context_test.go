package context

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	configv1 "ocm.software/open-component-model/appmodel/cli/configuration/v1"
)

func TestWithConfig(t *testing.T) {
	r := require.New(t)

	r.Nil(FromContext(t.Context()))
	r.Empty(ConfigFromContext(t.Context()).Mode)

	ctx := WithConfig(t.Context(), &configv1.Config{Mode: "dev"})
	r.Equal("dev", ConfigFromContext(ctx).Mode)

	again := WithConfig(ctx, &configv1.Config{Mode: "prod"})
	r.Same(FromContext(ctx), FromContext(again), "context is reused")
	r.Equal("prod", ConfigFromContext(ctx).Mode)
}

type holder struct{ ctx context.Context }

func (h *holder) Context() context.Context        { return h.ctx }
func (h *holder) SetContext(ctx context.Context) { h.ctx = ctx }

func TestRegister(t *testing.T) {
	r := require.New(t)
	h := &holder{}
	Register(h, &configv1.Config{Concurrency: 3})
	r.Equal(3, ConfigFromContext(h.Context()).Concurrency)
}

func TestConfigConcurrentAccess(t *testing.T) {
	ctx := WithConfig(t.Context(), &configv1.Config{})
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Go(func() {
			if i%2 == 0 {
				WithConfig(ctx, &configv1.Config{Concurrency: i})
				return
			}
			_ = ConfigFromContext(ctx)
		})
	}
	wg.Wait()
	require.NotNil(t, FromContext(ctx).Config())
}

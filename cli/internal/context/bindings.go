package context

import (
	"context"

	configv1 "ocm.software/open-component-model/appmodel/cli/configuration/v1"
)

type Reader interface {
	Context() context.Context
}

type Writer interface {
	SetContext(ctx context.Context)
}

type ReaderWriter interface {
	Reader
	Writer
}

// Register stores the configuration in the context of rw, typically a cobra command.
func Register(rw ReaderWriter, cfg *configv1.Config) {
	ctx := rw.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rw.SetContext(WithConfig(ctx, cfg))
}

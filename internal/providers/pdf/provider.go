package pdf

import (
	"context"

	"go.uber.org/fx"
)

// StatementRenderer turns a prepared invoice statement into a PDF document.
type StatementRenderer interface {
	RenderStatement(ctx context.Context, data StatementData) ([]byte, error)
}

var Module = fx.Module("pdf",
	fx.Provide(New),
)

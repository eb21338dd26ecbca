package render

import (
	"context"

	"github.com/observatory/quicklook/pkg/model"
)

// Renderer converts a FormModel into a byte representation (HTML for the
// built-in portal renderer).
type Renderer interface {
	Name() string
	ContentType() string
	Render(ctx context.Context, form model.FormModel, options RenderOptions) ([]byte, error)
}

package template

import "io"

// TemplateRenderer is the engine seam renderers rely on. The built-in
// implementation wraps pongo2; tests substitute in-memory fakes.
type TemplateRenderer interface {
	RenderTemplate(name string, data any, out ...io.Writer) (string, error)
	RenderString(templateContent string, data any, out ...io.Writer) (string, error)
	RegisterFilter(name string, fn func(input any, param any) (any, error)) error
	GlobalContext(data any) error
}

package model

// Decorator enriches a form model with additional metadata after the
// canonical schema-derived structure has been built. The portal uses
// decorators to inject catalog enums, resolve widgets, and pre-collapse
// instrument panels.
type Decorator interface {
	Decorate(*FormModel) error
}

// DecoratorFunc adapts a function into a Decorator.
type DecoratorFunc func(*FormModel) error

// Decorate calls the underlying function.
func (fn DecoratorFunc) Decorate(form *FormModel) error {
	return fn(form)
}

package inline

import (
	"context"
	"fmt"
	"iter"
)

// Provider produces suggestions. Providers are third-party code: the engine
// recovers their panics and treats their errors as request failures.
type Provider interface {
	// ID identifies the provider. It must be unique within an engine.
	ID() string
	// IsEnabled reports whether the provider handles t. It must be fast and
	// must not block.
	IsEnabled(t Trigger) bool
	// Proposals streams the suggestion for req. The sequence must terminate;
	// a non-nil error ends the request.
	Proposals(ctx context.Context, req *Request) iter.Seq2[Element, error]
}

// Invalidator is implemented by providers that want some events to discard
// their session instead of patching it.
type Invalidator interface {
	RequiresInvalidation(t Trigger) bool
}

// ProviderError is a failure raised by a provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// fetch pulls the provider's stream and hands every element to yield until
// the stream ends, yield returns false or ctx is cancelled. Panics and stream
// errors come back as *ProviderError.
func fetch(ctx context.Context, p Provider, req *Request, yield func(Element) bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ProviderError{Provider: p.ID(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	for el, perr := range p.Proposals(ctx, req) {
		if perr != nil {
			return &ProviderError{Provider: p.ID(), Err: perr}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !yield(el) {
			return nil
		}
	}
	return ctx.Err()
}

// isEnabled calls p.IsEnabled, treating a panic as "not enabled".
func isEnabled(p Provider, t Trigger) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, &ProviderError{Provider: p.ID(), Err: fmt.Errorf("panic in IsEnabled: %v", r)}
		}
	}()
	return p.IsEnabled(t), nil
}

// requiresInvalidation asks p whether t must discard its session.
// A panic counts as "yes".
func requiresInvalidation(p Provider, t Trigger) (yes bool) {
	inv, ok := p.(Invalidator)
	if !ok {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			yes = true
		}
	}()
	return inv.RequiresInvalidation(t)
}

package execution

import "context"

// Authorizer gates execution requests before any code runs. Embedders plug
// in tenancy or quota checks; the default permits everything.
type Authorizer interface {
	// Authorize returns a structured error when the request must be
	// rejected. A nil error admits the request.
	Authorize(ctx context.Context, req *Request) error
}

type allowAll struct{}

func (allowAll) Authorize(context.Context, *Request) error { return nil }

// AllowAll returns the permissive default authorizer.
func AllowAll() Authorizer {
	return allowAll{}
}

// Package embedding provides the embedding provider contract, the
// little-endian vector codec, and the asynchronous per-fact embed queue
// that populates the chunk cache.
package embedding

import "context"

// Provider maps text to a fixed-length float vector. It is initialized once
// with a credential by its module; a nil Provider is a valid, fully
// supported state in which the engine runs lexical-only.
type Provider interface {
	// Embed returns the embedding vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context, text string) ([]float32, error)

// Embed implements Provider.
func (f ProviderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

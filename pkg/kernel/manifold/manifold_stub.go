//go:build !manifold

// Package manifold provides a CGo-based geometry kernel binding to the
// Manifold library. When the "manifold" build tag is not set, this stub
// package is compiled instead, returning an error from New().
//
// Build with: go build -tags=manifold
package manifold

import "github.com/chazu/amgen/pkg/kernel"

// New returns ErrUnavailable. Callers fall back to another kernel, such
// as sdfx, to mesh their solids.
func New() (kernel.Kernel, error) {
	return nil, ErrUnavailable
}

// Package provider defines the source adapter contract and the resilient
// HTTP client adapters share. One adapter per remote provider; each maps
// the provider's wire shapes into normalized model.Records at this
// boundary, so field-name and unit quirks never leak further in.
package provider

import (
	"context"

	"github.com/vitalhub/vitalsync/internal/model"
)

// Adapter fetches raw records for a caller-supplied date window from one
// provider and returns them normalized. Implementations page until the
// provider is exhausted; when a page fails after the client's retry budget
// they return the records accumulated so far together with a
// *model.FetchError marked Partial, letting the caller decide whether the
// partial data is usable. Adapters are stateless across calls.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, window model.TimeRange) ([]model.Record, error)
}

// Source is one configured sync source: an adapter plus its enabled flag.
type Source struct {
	Name    string
	Enabled bool
	Adapter Adapter
}

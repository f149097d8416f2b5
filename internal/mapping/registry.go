package mapping

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/model"
)

// ErrUnknownSource is returned for a special source with no provider.
var ErrUnknownSource = fmt.Errorf("%w: no provider for special source", common.ErrValidation)

// Provider computes the amount of a special category. An invalid
// NullDecimal means "no data" for that year.
type Provider interface {
	Amount(ctx context.Context, propertyID int64, year int) (decimal.NullDecimal, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, propertyID int64, year int) (decimal.NullDecimal, error)

// Amount implements Provider.
func (f ProviderFunc) Amount(ctx context.Context, propertyID int64, year int) (decimal.NullDecimal, error) {
	return f(ctx, propertyID, year)
}

// Registry maps each special source to its provider. It is built once per
// statement; the same source can mean different figures on different
// statements (annual vs accumulated depreciation, interest vs principal).
type Registry struct {
	providers map[model.SpecialSource]Provider
}

// NewRegistry creates a registry. Unknown source keys are rejected.
func NewRegistry(providers map[model.SpecialSource]Provider) (*Registry, error) {
	r := &Registry{providers: make(map[model.SpecialSource]Provider, len(providers))}
	for src, p := range providers {
		if !src.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSource, src)
		}
		r.providers[src] = p
	}
	return r, nil
}

// Has reports whether source has a provider.
func (r *Registry) Has(source model.SpecialSource) bool {
	_, ok := r.providers[source]
	return ok
}

// Amount asks the provider registered for source.
func (r *Registry) Amount(ctx context.Context, source model.SpecialSource, propertyID int64, year int) (decimal.NullDecimal, error) {
	p, ok := r.providers[source]
	if !ok {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	return p.Amount(ctx, propertyID, year)
}

// Value wraps a known amount.
func Value(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

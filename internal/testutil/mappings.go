package testutil

import (
	"context"
	"fmt"

	"github.com/Veraticus/lmnp-ledger/internal/model"
	"github.com/Veraticus/lmnp-ledger/internal/service"
)

// MappingBuilder accumulates statement categories for one property.
//
//	testutil.NewMappingBuilder(p.ID).
//		Income(model.TypeProduits, "Loyers", "Loyer").
//		Special(model.TypePassif, model.SubDettesFinancieres, "Emprunt", model.SourceLoanPayments)
type MappingBuilder struct {
	mappings   []model.CategoryMapping
	propertyID int64
}

// NewMappingBuilder starts an empty set of categories.
func NewMappingBuilder(propertyID int64) *MappingBuilder {
	return &MappingBuilder{propertyID: propertyID}
}

// Income adds an ordinary income statement category.
func (b *MappingBuilder) Income(t model.MappingType, name string, level1 ...string) *MappingBuilder {
	b.mappings = append(b.mappings, model.CategoryMapping{
		PropertyID:   b.propertyID,
		Statement:    model.StatementIncome,
		Type:         t,
		CategoryName: name,
		Level1Values: level1,
	})
	return b
}

// Balance adds an ordinary balance sheet category.
func (b *MappingBuilder) Balance(t model.MappingType, sub model.SubCategory, name string, level1 ...string) *MappingBuilder {
	b.mappings = append(b.mappings, model.CategoryMapping{
		PropertyID:   b.propertyID,
		Statement:    model.StatementBalance,
		Type:         t,
		SubCategory:  sub,
		CategoryName: name,
		Level1Values: level1,
	})
	return b
}

// Special adds a computed balance sheet category.
func (b *MappingBuilder) Special(t model.MappingType, sub model.SubCategory, name string, source model.SpecialSource) *MappingBuilder {
	b.mappings = append(b.mappings, model.CategoryMapping{
		PropertyID:    b.propertyID,
		Statement:     model.StatementBalance,
		Type:          t,
		SubCategory:   sub,
		CategoryName:  name,
		IsSpecial:     true,
		SpecialSource: source,
	})
	return b
}

// WithStandardIncome adds rent income and the usual furnished rental
// charges.
func (b *MappingBuilder) WithStandardIncome() *MappingBuilder {
	return b.
		Income(model.TypeProduits, "Loyers", "Loyer").
		Income(model.TypeCharges, "Charges de copropriété", "Copropriété").
		Income(model.TypeCharges, "Taxe foncière", "Taxe foncière").
		Income(model.TypeCharges, "Assurance", "Assurance PNO")
}

// Build creates the categories in order and returns them with their ids.
func (b *MappingBuilder) Build(ctx context.Context, store service.MappingStore) ([]model.CategoryMapping, error) {
	out := make([]model.CategoryMapping, 0, len(b.mappings))
	for _, m := range b.mappings {
		if err := store.CreateMapping(ctx, &m); err != nil {
			return nil, fmt.Errorf("failed to create mapping %q: %w", m.CategoryName, err)
		}
		out = append(out, m)
	}
	return out, nil
}

package model

import (
	"fmt"
	"strings"

	"github.com/Veraticus/lmnp-ledger/internal/common"
)

// Statement identifies which financial statement a mapping or config targets.
type Statement string

const (
	// StatementIncome is the compte de résultat (income statement).
	StatementIncome Statement = "compte_resultat"
	// StatementBalance is the bilan (balance sheet).
	StatementBalance Statement = "bilan"
)

// Valid reports whether s is a known statement.
func (s Statement) Valid() bool {
	return s == StatementIncome || s == StatementBalance
}

// Label is the French display name.
func (s Statement) Label() string {
	switch s {
	case StatementIncome:
		return "Compte de résultat"
	case StatementBalance:
		return "Bilan"
	}
	return string(s)
}

// ParseStatement accepts the stored names plus a few CLI aliases.
func ParseStatement(s string) (Statement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "compte_resultat", "income", "cr":
		return StatementIncome, nil
	case "bilan", "balance":
		return StatementBalance, nil
	}
	return "", fmt.Errorf("%w: unknown statement %q", common.ErrValidation, s)
}

// MappingType is the top level of a statement hierarchy.
type MappingType string

// Income statement types.
const (
	TypeProduits MappingType = "Produits d'exploitation"
	TypeCharges  MappingType = "Charges d'exploitation"
)

// Balance sheet types.
const (
	TypeActif  MappingType = "ACTIF"
	TypePassif MappingType = "PASSIF"
)

// SubCategory is the balance sheet level between type and category.
type SubCategory string

// Balance sheet sub-categories.
const (
	SubActifImmobilise   SubCategory = "Actif immobilisé"
	SubActifCirculant    SubCategory = "Actif circulant"
	SubCapitauxPropres   SubCategory = "Capitaux propres"
	SubTresoreriePassive SubCategory = "Trésorerie passive"
	SubDettesFinancieres SubCategory = "Dettes financières"
)

// SubCategoriesFor returns the fixed sub-categories of a balance sheet type,
// in display order.
func SubCategoriesFor(t MappingType) []SubCategory {
	switch t {
	case TypeActif:
		return []SubCategory{SubActifImmobilise, SubActifCirculant}
	case TypePassif:
		return []SubCategory{SubCapitauxPropres, SubTresoreriePassive, SubDettesFinancieres}
	}
	return nil
}

// TypesFor returns the types of a statement in display order.
func TypesFor(s Statement) []MappingType {
	switch s {
	case StatementIncome:
		return []MappingType{TypeProduits, TypeCharges}
	case StatementBalance:
		return []MappingType{TypeActif, TypePassif}
	}
	return nil
}

// SpecialSource names the provider computing a special category.
type SpecialSource string

const (
	SourceAmortizations       SpecialSource = "amortizations"
	SourceTransactions        SpecialSource = "transactions"
	SourceCompteResultat      SpecialSource = "compte_resultat"
	SourceCompteResultatCumul SpecialSource = "compte_resultat_cumul"
	SourceLoanPayments        SpecialSource = "loan_payments"
)

// Valid reports whether s is a known provider key.
func (s SpecialSource) Valid() bool {
	switch s {
	case SourceAmortizations, SourceTransactions, SourceCompteResultat,
		SourceCompteResultatCumul, SourceLoanPayments:
		return true
	}
	return false
}

// Fixed names of special categories.
const (
	CategoryChargesAmortissements = "Charges d'amortissements"
	CategoryCoutFinancement       = "Coût du financement"
	CategoryAmortissementsCumules = "Amortissements cumulés"
	CategoryCompteBancaire        = "Compte bancaire"
	CategoryResultatExercice      = "Résultat de l'exercice"
	CategoryReportANouveau        = "Report à nouveau / report du déficit"
	CategoryEmpruntBancaire       = "Emprunt bancaire (capital restant dû)"
)

// CategoryMapping assigns ledger level_1 tags to a named statement category.
type CategoryMapping struct {
	Statement     Statement
	Type          MappingType
	SubCategory   SubCategory
	SpecialSource SpecialSource
	CategoryName  string
	Level1Values  []string
	ID            int64
	PropertyID    int64
	IsSpecial     bool
}

// HasMapping reports whether the mapping contributes to aggregation.
// An ordinary mapping without level_1 values is "not mapped", which is
// different from "mapped with a zero total".
func (m *CategoryMapping) HasMapping() bool {
	return m.IsSpecial || len(m.Level1Values) > 0
}

// Claims reports whether the mapping matches the given level_1 tag.
func (m *CategoryMapping) Claims(level1 string) bool {
	for _, v := range m.Level1Values {
		if v == level1 {
			return true
		}
	}
	return false
}

// Validate ensures the mapping is consistent with its statement.
func (m *CategoryMapping) Validate() error {
	if strings.TrimSpace(m.CategoryName) == "" {
		return fmt.Errorf("%w: category name is required", common.ErrValidation)
	}
	if !m.Statement.Valid() {
		return fmt.Errorf("%w: undefined statement %q", common.ErrValidation, m.Statement)
	}

	validType := false
	for _, t := range TypesFor(m.Statement) {
		if t == m.Type {
			validType = true
			break
		}
	}
	if !validType {
		return fmt.Errorf("%w: type %q is not defined for %s", common.ErrValidation, m.Type, m.Statement)
	}

	if m.Statement == StatementBalance {
		if m.SubCategory == "" {
			return fmt.Errorf("%w: sub-category is required for balance sheet mappings", common.ErrValidation)
		}
		validSub := false
		for _, sc := range SubCategoriesFor(m.Type) {
			if sc == m.SubCategory {
				validSub = true
				break
			}
		}
		if !validSub {
			return fmt.Errorf("%w: sub-category %q does not belong to %s", common.ErrValidation, m.SubCategory, m.Type)
		}
	} else if m.SubCategory != "" {
		return fmt.Errorf("%w: income statement mappings have no sub-category", common.ErrValidation)
	}

	if m.IsSpecial && !m.SpecialSource.Valid() {
		return fmt.Errorf("%w: special category %q needs a valid source, got %q", common.ErrValidation, m.CategoryName, m.SpecialSource)
	}
	if !m.IsSpecial && m.SpecialSource != "" {
		return fmt.Errorf("%w: ordinary category %q cannot have a special source", common.ErrValidation, m.CategoryName)
	}

	seen := make(map[string]bool, len(m.Level1Values))
	for _, v := range m.Level1Values {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: empty level_1 value in %q", common.ErrValidation, m.CategoryName)
		}
		if seen[v] {
			return fmt.Errorf("%w: duplicate level_1 value %q in %q", common.ErrValidation, v, m.CategoryName)
		}
		seen[v] = true
	}

	return nil
}

// StatementConfig is the level_3 scope filter of a statement.
type StatementConfig struct {
	Statement    Statement
	Level3Values []string
	PropertyID   int64
}

// InScope reports whether a transaction's level_3 tag is selected.
func (c *StatementConfig) InScope(level3 string) bool {
	if c == nil {
		return false
	}
	for _, v := range c.Level3Values {
		if v == level3 {
			return true
		}
	}
	return false
}

// Empty reports whether no level_3 value is selected.
func (c *StatementConfig) Empty() bool {
	return c == nil || len(c.Level3Values) == 0
}

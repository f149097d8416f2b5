package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/lmnp-ledger/internal/common"
)

func TestCategoryMapping_Validate(t *testing.T) {
	tests := []struct {
		name    string
		errMsg  string
		mapping CategoryMapping
		wantErr bool
	}{
		{
			name: "income mapping",
			mapping: CategoryMapping{
				Statement:    StatementIncome,
				Type:         TypeProduits,
				CategoryName: "Loyers",
				Level1Values: []string{"Loyer", "Caution"},
			},
		},
		{
			name: "balance special mapping",
			mapping: CategoryMapping{
				Statement:     StatementBalance,
				Type:          TypePassif,
				SubCategory:   SubDettesFinancieres,
				CategoryName:  CategoryEmpruntBancaire,
				IsSpecial:     true,
				SpecialSource: SourceLoanPayments,
			},
		},
		{
			name:    "missing name",
			mapping: CategoryMapping{Statement: StatementIncome, Type: TypeCharges},
			wantErr: true,
			errMsg:  "category name is required",
		},
		{
			name:    "unknown statement",
			mapping: CategoryMapping{Statement: "cashflow", Type: TypeCharges, CategoryName: "Copro"},
			wantErr: true,
			errMsg:  "undefined statement",
		},
		{
			name:    "balance type on income statement",
			mapping: CategoryMapping{Statement: StatementIncome, Type: TypeActif, CategoryName: "Copro"},
			wantErr: true,
			errMsg:  "is not defined for",
		},
		{
			name:    "balance mapping without sub-category",
			mapping: CategoryMapping{Statement: StatementBalance, Type: TypeActif, CategoryName: "Mobilier"},
			wantErr: true,
			errMsg:  "sub-category is required",
		},
		{
			name: "sub-category of the other side",
			mapping: CategoryMapping{
				Statement:    StatementBalance,
				Type:         TypeActif,
				SubCategory:  SubCapitauxPropres,
				CategoryName: "Mobilier",
			},
			wantErr: true,
			errMsg:  "does not belong to",
		},
		{
			name: "income mapping with sub-category",
			mapping: CategoryMapping{
				Statement:    StatementIncome,
				Type:         TypeCharges,
				SubCategory:  SubActifCirculant,
				CategoryName: "Copro",
			},
			wantErr: true,
			errMsg:  "no sub-category",
		},
		{
			name: "special without source",
			mapping: CategoryMapping{
				Statement:    StatementIncome,
				Type:         TypeCharges,
				CategoryName: CategoryCoutFinancement,
				IsSpecial:    true,
			},
			wantErr: true,
			errMsg:  "needs a valid source",
		},
		{
			name: "ordinary with source",
			mapping: CategoryMapping{
				Statement:     StatementIncome,
				Type:          TypeCharges,
				CategoryName:  "Copro",
				SpecialSource: SourceTransactions,
			},
			wantErr: true,
			errMsg:  "cannot have a special source",
		},
		{
			name: "duplicate level_1",
			mapping: CategoryMapping{
				Statement:    StatementIncome,
				Type:         TypeCharges,
				CategoryName: "Copro",
				Level1Values: []string{"Copro", "Copro"},
			},
			wantErr: true,
			errMsg:  "duplicate level_1 value",
		},
		{
			name: "blank level_1",
			mapping: CategoryMapping{
				Statement:    StatementIncome,
				Type:         TypeCharges,
				CategoryName: "Copro",
				Level1Values: []string{" "},
			},
			wantErr: true,
			errMsg:  "empty level_1 value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mapping.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestCategoryMapping_HasMapping(t *testing.T) {
	assert.False(t, (&CategoryMapping{CategoryName: "Travaux"}).HasMapping())
	assert.True(t, (&CategoryMapping{Level1Values: []string{"Travaux"}}).HasMapping())
	assert.True(t, (&CategoryMapping{IsSpecial: true, SpecialSource: SourceAmortizations}).HasMapping())
}

func TestParseStatement(t *testing.T) {
	s, err := ParseStatement(" Income ")
	require.NoError(t, err)
	assert.Equal(t, StatementIncome, s)
	assert.Equal(t, "Compte de résultat", s.Label())

	s, err = ParseStatement("bilan")
	require.NoError(t, err)
	assert.Equal(t, "Bilan", s.Label())

	_, err = ParseStatement("cashflow")
	assert.ErrorIs(t, err, common.ErrValidation)
}

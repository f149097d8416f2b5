package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/model"
	"github.com/Veraticus/lmnp-ledger/internal/service"
)

func testLoan(propertyID int64, name string) *model.LoanConfig {
	start := day(2021, time.January, 15)
	return &model.LoanConfig{
		PropertyID:    propertyID,
		Name:          name,
		CreditAmount:  dec("100000"),
		InterestRate:  dec("2"),
		DurationYears: 20,
		LoanStartDate: &start,
	}
}

func TestSaveLoanConfig(t *testing.T) {
	store, propertyID, cleanup := createTestProperty(t)
	defer cleanup()
	ctx := context.Background()

	loan := testLoan(propertyID, "Crédit immo")
	require.NoError(t, store.SaveLoanConfig(ctx, loan))
	assert.Positive(t, loan.ID)

	got, err := store.GetLoanConfig(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "100000", got.CreditAmount.String())
	assert.Equal(t, "2", got.InterestRate.String())
	assert.Equal(t, model.DeferralInterestOnly, got.DeferralMode)
	require.NotNil(t, got.LoanStartDate)
	assert.Equal(t, "2021-01-15", got.LoanStartDate.Format("2006-01-02"))
	assert.Nil(t, got.LoanEndDate)

	assert.ErrorIs(t, store.SaveLoanConfig(ctx, testLoan(propertyID, "Crédit immo")), common.ErrDuplicateEntry)

	invalid := testLoan(propertyID, "Travaux")
	invalid.CreditAmount = dec("0")
	assert.True(t, common.IsValidation(store.SaveLoanConfig(ctx, invalid)))

	loans, err := store.ListLoanConfigs(ctx, propertyID)
	require.NoError(t, err)
	assert.Len(t, loans, 1)
}

func TestSaveLoanConfig_RenameMovesPayments(t *testing.T) {
	store, propertyID, cleanup := createTestProperty(t)
	defer cleanup()
	ctx := context.Background()

	loan := testLoan(propertyID, "Crédit")
	require.NoError(t, store.SaveLoanConfig(ctx, loan))
	require.NoError(t, store.SaveLoanPayments(ctx, []model.LoanPayment{
		{PropertyID: propertyID, LoanName: "Crédit", Date: day(2021, time.February, 15), PrincipalPortion: dec("340"), InterestPortion: dec("165")},
	}))

	loan.Name = "Crédit principal"
	require.NoError(t, store.SaveLoanConfig(ctx, loan))

	payments, err := store.ListLoanPayments(ctx, propertyID, "Crédit principal", nil)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	payments, err = store.ListLoanPayments(ctx, propertyID, "Crédit", nil)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestLoanPayments(t *testing.T) {
	store, propertyID, cleanup := createTestProperty(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.SaveLoanPayments(ctx, []model.LoanPayment{
		{PropertyID: propertyID, LoanName: "A", Date: day(2021, time.February, 15), PrincipalPortion: dec("340"), InterestPortion: dec("165")},
		{PropertyID: propertyID, LoanName: "A", Date: day(2022, time.February, 15), PrincipalPortion: dec("350"), InterestPortion: dec("155")},
		{PropertyID: propertyID, LoanName: "B", Date: day(2021, time.March, 1), PrincipalPortion: dec("100"), InterestPortion: dec("10")},
	}))

	// same loan and date overwrites
	require.NoError(t, store.SaveLoanPayments(ctx, []model.LoanPayment{
		{PropertyID: propertyID, LoanName: "A", Date: day(2021, time.February, 15), PrincipalPortion: dec("341"), InterestPortion: dec("164")},
	}))

	r := service.YearRange(2021)
	payments, err := store.ListLoanPayments(ctx, propertyID, "", &r)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "A", payments[0].LoanName)
	assert.Equal(t, "164", payments[0].InterestPortion.String())
	assert.Equal(t, "505", payments[0].Total().String())

	payments, err = store.ListLoanPayments(ctx, propertyID, "A", nil)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

func TestDeleteLoanConfig_Cascades(t *testing.T) {
	store, propertyID, cleanup := createTestProperty(t)
	defer cleanup()
	ctx := context.Background()

	a := testLoan(propertyID, "A")
	b := testLoan(propertyID, "B")
	require.NoError(t, store.SaveLoanConfig(ctx, a))
	require.NoError(t, store.SaveLoanConfig(ctx, b))
	require.NoError(t, store.SaveLoanPayments(ctx, []model.LoanPayment{
		{PropertyID: propertyID, LoanName: "A", Date: day(2021, time.February, 15), PrincipalPortion: dec("340"), InterestPortion: dec("165")},
		{PropertyID: propertyID, LoanName: "B", Date: day(2021, time.February, 15), PrincipalPortion: dec("100"), InterestPortion: dec("10")},
	}))

	require.NoError(t, store.DeleteLoanConfig(ctx, a.ID))
	assert.ErrorIs(t, store.DeleteLoanConfig(ctx, a.ID), common.ErrNotFound)

	payments, err := store.ListLoanPayments(ctx, propertyID, "", nil)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "B", payments[0].LoanName)

	_, err = store.GetLoanConfig(ctx, a.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

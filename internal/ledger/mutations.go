package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/events"
	"github.com/Veraticus/lmnp-ledger/internal/model"
)

const module = "ledger"

// SaveTransactions imports transactions for one or more properties and
// returns how many were new.
func (s *Service) SaveTransactions(ctx context.Context, txns []model.Transaction) (int, error) {
	n, err := s.storage.SaveTransactions(ctx, txns)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		emitted := make(map[int64]bool)
		for i := range txns {
			if id := txns[i].PropertyID; !emitted[id] {
				emitted[id] = true
				s.bus.Emit(events.TransactionsChanged, module, id)
			}
		}
	}
	return n, nil
}

// UpdateTransaction edits a transaction; running balances are recomputed
// by the store.
func (s *Service) UpdateTransaction(ctx context.Context, id string, edit model.TransactionEdit) (*model.Transaction, error) {
	txn, err := s.storage.UpdateTransaction(ctx, id, edit)
	if err != nil {
		return nil, err
	}
	s.bus.Emit(events.TransactionsChanged, module, txn.PropertyID)
	return txn, nil
}

// DeleteTransaction removes a transaction.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	txn, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.bus.Emit(events.TransactionsChanged, module, txn.PropertyID)
	return nil
}

// SaveLoanConfig creates or updates a loan.
func (s *Service) SaveLoanConfig(ctx context.Context, cfg *model.LoanConfig) error {
	if err := s.storage.SaveLoanConfig(ctx, cfg); err != nil {
		return err
	}
	s.bus.Emit(events.LoanChanged, module, cfg.PropertyID)
	return nil
}

// DeleteLoanConfig deletes a loan and its payments.
func (s *Service) DeleteLoanConfig(ctx context.Context, id int64) error {
	cfg, err := s.storage.GetLoanConfig(ctx, id)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteLoanConfig(ctx, id); err != nil {
		return err
	}
	s.bus.Emit(events.LoanChanged, module, cfg.PropertyID)
	return nil
}

// SaveLoanPayments stores imported payments.
func (s *Service) SaveLoanPayments(ctx context.Context, payments []model.LoanPayment) error {
	if err := s.storage.SaveLoanPayments(ctx, payments); err != nil {
		return err
	}
	emitted := make(map[int64]bool)
	for i := range payments {
		if id := payments[i].PropertyID; !emitted[id] {
			emitted[id] = true
			s.bus.Emit(events.LoanChanged, module, id)
		}
	}
	return nil
}

// SetOverride replaces the net result of a year in the cumulative result.
func (s *Service) SetOverride(ctx context.Context, propertyID int64, year int, value decimal.Decimal) error {
	err := s.storage.UpsertOverride(ctx, model.CompteResultatOverride{
		PropertyID:    propertyID,
		Year:          year,
		OverrideValue: value,
	})
	if err != nil {
		return err
	}
	s.bus.Emit(events.OverridesChanged, module, propertyID)
	return nil
}

// DeleteOverride goes back to the computed result for a year.
func (s *Service) DeleteOverride(ctx context.Context, propertyID int64, year int) error {
	if err := s.storage.DeleteOverride(ctx, propertyID, year); err != nil {
		return err
	}
	s.bus.Emit(events.OverridesChanged, module, propertyID)
	return nil
}

// CreateMapping stores a new category mapping.
func (s *Service) CreateMapping(ctx context.Context, m *model.CategoryMapping) error {
	if err := s.storage.CreateMapping(ctx, m); err != nil {
		return err
	}
	s.bus.Emit(events.MappingsChanged, module, m.PropertyID)
	return nil
}

// UpdateMapping replaces a category mapping.
func (s *Service) UpdateMapping(ctx context.Context, m *model.CategoryMapping) error {
	if err := s.storage.UpdateMapping(ctx, m); err != nil {
		return err
	}
	s.bus.Emit(events.MappingsChanged, module, m.PropertyID)
	return nil
}

// DeleteMapping removes a category mapping.
func (s *Service) DeleteMapping(ctx context.Context, id int64) error {
	m, err := s.storage.GetMapping(ctx, id)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteMapping(ctx, id); err != nil {
		return err
	}
	s.bus.Emit(events.MappingsChanged, module, m.PropertyID)
	return nil
}

// AssignLevel1 moves a level_1 value to a mapping.
func (s *Service) AssignLevel1(ctx context.Context, mappingID int64, level1 string) error {
	m, err := s.storage.GetMapping(ctx, mappingID)
	if err != nil {
		return err
	}
	if err := s.storage.AssignLevel1(ctx, mappingID, level1); err != nil {
		return err
	}
	s.bus.Emit(events.MappingsChanged, module, m.PropertyID)
	return nil
}

// ResetMappings deletes every mapping of a statement.
func (s *Service) ResetMappings(ctx context.Context, propertyID int64, statement model.Statement) (int, error) {
	n, err := s.storage.ResetMappings(ctx, propertyID, statement)
	if err != nil {
		return 0, err
	}
	s.bus.Emit(events.MappingsChanged, module, propertyID)
	return n, nil
}

// SetScope stores the level_3 values a statement reads.
func (s *Service) SetScope(ctx context.Context, cfg *model.StatementConfig) error {
	if err := s.storage.SaveStatementConfig(ctx, cfg); err != nil {
		return err
	}
	s.bus.Emit(events.ConfigChanged, module, cfg.PropertyID)
	return nil
}

// SetDepreciation records the depreciation of a year.
func (s *Service) SetDepreciation(ctx context.Context, propertyID int64, year int, amount decimal.Decimal) error {
	err := s.storage.SetAnnualDepreciation(ctx, model.DepreciationEntry{
		PropertyID: propertyID,
		Year:       year,
		Amount:     amount,
	})
	if err != nil {
		return err
	}
	s.bus.Emit(events.DepreciationChanged, module, propertyID)
	return nil
}

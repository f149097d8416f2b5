// Package ledger builds the financial statements of a property from its
// stores and keeps the loaded data cached until a change is announced.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Veraticus/lmnp-ledger/internal/events"
	"github.com/Veraticus/lmnp-ledger/internal/forecast"
	"github.com/Veraticus/lmnp-ledger/internal/loan"
	"github.com/Veraticus/lmnp-ledger/internal/model"
	"github.com/Veraticus/lmnp-ledger/internal/service"
)

// Service computes statements, loan tables and forecasts for properties.
type Service struct {
	storage  service.Storage
	bus      *events.Bus
	strategy forecast.ProRataStrategy
	cache    map[int64]*snapshot
	// gen counts invalidations per property; a load only fills the cache
	// when no invalidation happened while it ran.
	gen      map[int64]uint64
	loanTags []string
	unsubs   []func()
	mu       sync.RWMutex
}

// Config holds configuration options for the service.
type Config struct {
	// ProRata extrapolates the current year when pro-rata is enabled.
	ProRata forecast.ProRataStrategy
	// LoanTags are the level_1 values of loan disbursement transactions.
	LoanTags []string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ProRata:  forecast.DayCountStrategy{},
		LoanTags: []string{"Emprunt"},
	}
}

// New creates a service with the default configuration.
func New(storage service.Storage, bus *events.Bus) *Service {
	return NewWithConfig(storage, bus, DefaultConfig())
}

// NewWithConfig creates a service and subscribes its cache to every event
// type on bus. A nil bus gets a private one.
func NewWithConfig(storage service.Storage, bus *events.Bus, config Config) *Service {
	if bus == nil {
		bus = events.NewBus(nil)
	}
	if config.ProRata == nil {
		config.ProRata = forecast.DayCountStrategy{}
	}

	s := &Service{
		storage:  storage,
		bus:      bus,
		strategy: config.ProRata,
		loanTags: config.LoanTags,
		cache:    make(map[int64]*snapshot),
		gen:      make(map[int64]uint64),
	}
	for _, t := range events.AllTypes {
		s.unsubs = append(s.unsubs, bus.Subscribe(t, s.onChange))
	}
	return s
}

// Close detaches the service from the bus.
func (s *Service) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
}

// Bus returns the bus the service listens on.
func (s *Service) Bus() *events.Bus {
	return s.bus
}

// OnLoanChanged drops the cached data of a property after a loan edit.
func (s *Service) OnLoanChanged(propertyID int64) {
	s.invalidate(propertyID)
}

// OnTransactionsChanged drops the cached data of a property after the
// ledger changed.
func (s *Service) OnTransactionsChanged(propertyID int64) {
	s.invalidate(propertyID)
}

func (s *Service) onChange(e events.Event) {
	switch e.Type {
	case events.LoanChanged:
		s.OnLoanChanged(e.PropertyID)
	case events.TransactionsChanged:
		s.OnTransactionsChanged(e.PropertyID)
	default:
		s.invalidate(e.PropertyID)
	}
}

func (s *Service) invalidate(propertyID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen[propertyID]++
	if _, ok := s.cache[propertyID]; ok {
		delete(s.cache, propertyID)
		slog.Debug("invalidated statement cache", "property_id", propertyID)
	}
}

// snapshot is a consistent read of everything the statements need.
type snapshot struct {
	loans           *loan.Summary
	incomeScope     *model.StatementConfig
	balanceScope    *model.StatementConfig
	transactions    []model.Transaction
	incomeMappings  []model.CategoryMapping
	balanceMappings []model.CategoryMapping
	overrides       []model.CompteResultatOverride
	loanConfigs     []model.LoanConfig
}

func (sn *snapshot) mappings(statement model.Statement) []model.CategoryMapping {
	if statement == model.StatementBalance {
		return sn.balanceMappings
	}
	return sn.incomeMappings
}

func (sn *snapshot) scope(statement model.Statement) *model.StatementConfig {
	if statement == model.StatementBalance {
		return sn.balanceScope
	}
	return sn.incomeScope
}

// years lists the calendar years with at least one transaction.
func (sn *snapshot) years() []int {
	seen := make(map[int]bool)
	var out []int
	for i := range sn.transactions {
		y := sn.transactions[i].Year()
		if !seen[y] {
			seen[y] = true
			out = append(out, y)
		}
	}
	sort.Ints(out)
	return out
}

func (s *Service) snapshot(ctx context.Context, propertyID int64) (*snapshot, error) {
	s.mu.RLock()
	sn, ok := s.cache[propertyID]
	gen := s.gen[propertyID]
	s.mu.RUnlock()
	if ok {
		return sn, nil
	}

	sn, err := s.load(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.gen[propertyID] == gen {
		s.cache[propertyID] = sn
	} else {
		slog.Debug("statement data changed while loading, not cached", "property_id", propertyID)
	}
	s.mu.Unlock()
	return sn, nil
}

func (s *Service) load(ctx context.Context, propertyID int64) (*snapshot, error) {
	if _, err := s.storage.GetProperty(ctx, propertyID); err != nil {
		return nil, err
	}

	sn := &snapshot{}
	var err error
	if sn.transactions, err = s.storage.ListTransactions(ctx, propertyID, service.TransactionFilter{}); err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	if sn.incomeMappings, err = s.storage.ListMappings(ctx, propertyID, model.StatementIncome); err != nil {
		return nil, fmt.Errorf("failed to load income mappings: %w", err)
	}
	if sn.balanceMappings, err = s.storage.ListMappings(ctx, propertyID, model.StatementBalance); err != nil {
		return nil, fmt.Errorf("failed to load balance mappings: %w", err)
	}
	if sn.incomeScope, err = s.storage.GetStatementConfig(ctx, propertyID, model.StatementIncome); err != nil {
		return nil, fmt.Errorf("failed to load income scope: %w", err)
	}
	if sn.balanceScope, err = s.storage.GetStatementConfig(ctx, propertyID, model.StatementBalance); err != nil {
		return nil, fmt.Errorf("failed to load balance scope: %w", err)
	}
	if sn.overrides, err = s.storage.GetOverrides(ctx, propertyID); err != nil {
		return nil, fmt.Errorf("failed to load overrides: %w", err)
	}
	if sn.loanConfigs, err = s.storage.ListLoanConfigs(ctx, propertyID); err != nil {
		return nil, fmt.Errorf("failed to load loans: %w", err)
	}
	payments, err := s.storage.ListLoanPayments(ctx, propertyID, "", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load loan payments: %w", err)
	}
	sn.loans = loan.Aggregate(sn.loanConfigs, payments)

	slog.Debug("loaded statement data",
		"property_id", propertyID,
		"transactions", len(sn.transactions),
		"loans", len(sn.loanConfigs))
	return sn, nil
}

// Years returns the years with transactions for a property.
func (s *Service) Years(ctx context.Context, propertyID int64) ([]int, error) {
	sn, err := s.snapshot(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return sn.years(), nil
}

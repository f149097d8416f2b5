// Package service defines the contracts between the statement engine and
// its collaborators.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/model"
)

// DateRange represents a time period with inclusive start and end dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls in the range, comparing dates only.
func (r DateRange) Contains(t time.Time) bool {
	day := t.Format("2006-01-02")
	return day >= r.Start.Format("2006-01-02") && day <= r.End.Format("2006-01-02")
}

// YearRange covers one calendar year.
func YearRange(year int) DateRange {
	return DateRange{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	Range  *DateRange
	Level1 string
	Level3 string
	Limit  int
	Offset int
}

// PropertyStore manages the properties owning every other row.
type PropertyStore interface {
	CreateProperty(ctx context.Context, name string) (*model.Property, error)
	GetProperty(ctx context.Context, id int64) (*model.Property, error)
	GetPropertyByName(ctx context.Context, name string) (*model.Property, error)
	ListProperties(ctx context.Context) ([]model.Property, error)
}

// TransactionSource is the ledger of a property.
type TransactionSource interface {
	SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	ListTransactions(ctx context.Context, propertyID int64, filter TransactionFilter) ([]model.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, edit model.TransactionEdit) (*model.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	GetRunningBalance(ctx context.Context, propertyID int64, asOf time.Time) (decimal.Decimal, error)
	ListLevelValues(ctx context.Context, propertyID int64, level int) ([]string, error)
}

// MappingStore persists category mappings. Create and update reject a
// level_1 value already claimed by another mapping of the same statement.
type MappingStore interface {
	ListMappings(ctx context.Context, propertyID int64, statement model.Statement) ([]model.CategoryMapping, error)
	GetMapping(ctx context.Context, id int64) (*model.CategoryMapping, error)
	CreateMapping(ctx context.Context, m *model.CategoryMapping) error
	UpdateMapping(ctx context.Context, m *model.CategoryMapping) error
	DeleteMapping(ctx context.Context, id int64) error
	AssignLevel1(ctx context.Context, mappingID int64, level1 string) error
	ResetMappings(ctx context.Context, propertyID int64, statement model.Statement) (int, error)
}

// ConfigStore persists the level_3 scope of each statement.
type ConfigStore interface {
	GetStatementConfig(ctx context.Context, propertyID int64, statement model.Statement) (*model.StatementConfig, error)
	SaveStatementConfig(ctx context.Context, cfg *model.StatementConfig) error
}

// LoanStore persists loan configurations and imported payments.
type LoanStore interface {
	ListLoanConfigs(ctx context.Context, propertyID int64) ([]model.LoanConfig, error)
	GetLoanConfig(ctx context.Context, id int64) (*model.LoanConfig, error)
	SaveLoanConfig(ctx context.Context, cfg *model.LoanConfig) error
	DeleteLoanConfig(ctx context.Context, id int64) error
	SaveLoanPayments(ctx context.Context, payments []model.LoanPayment) error
	ListLoanPayments(ctx context.Context, propertyID int64, loanName string, r *DateRange) ([]model.LoanPayment, error)
}

// OverrideStore persists the per-year overrides of the net result.
type OverrideStore interface {
	GetOverrides(ctx context.Context, propertyID int64) ([]model.CompteResultatOverride, error)
	UpsertOverride(ctx context.Context, o model.CompteResultatOverride) error
	DeleteOverride(ctx context.Context, propertyID int64, year int) error
}

// DepreciationProvider returns the depreciation booked for a property.
// ok is false when nothing is recorded.
type DepreciationProvider interface {
	GetAnnualDepreciation(ctx context.Context, propertyID int64, year int) (amount decimal.Decimal, ok bool, err error)
	GetAccumulatedDepreciation(ctx context.Context, propertyID int64, year int) (amount decimal.Decimal, ok bool, err error)
}

// DepreciationStore records the depreciation table.
type DepreciationStore interface {
	DepreciationProvider
	SetAnnualDepreciation(ctx context.Context, entry model.DepreciationEntry) error
	ListDepreciation(ctx context.Context, propertyID int64) ([]model.DepreciationEntry, error)
}

// ForecastStore persists forecast bases and pro-rata settings.
type ForecastStore interface {
	GetForecastConfigs(ctx context.Context, propertyID int64, year int, target model.Statement) ([]model.AnnualForecastConfig, error)
	UpsertForecastConfigs(ctx context.Context, configs []model.AnnualForecastConfig) error
	GetProRataSettings(ctx context.Context, propertyID int64, target model.Statement) (*model.ProRataSettings, error)
	SaveProRataSettings(ctx context.Context, settings *model.ProRataSettings) error
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	PropertyStore
	TransactionSource
	MappingStore
	ConfigStore
	LoanStore
	OverrideStore
	DepreciationStore
	ForecastStore

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// ReportWriter exports rendered statements.
type ReportWriter interface {
	Write(ctx context.Context, report *Report) error
}

// Report is a statement flattened into rows for export.
type Report struct {
	Title    string
	Sheet    string
	Headers  []string
	Rows     []ReportRow
	Warnings []string
}

// ReportRow is one exported line. Empty cells are "no data".
type ReportRow struct {
	Label string
	Cells []decimal.NullDecimal
	// Level is the hierarchy depth, 0 for type headers.
	Level int
	Bold  bool
}

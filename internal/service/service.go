package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/adiwira/cashflow-server/internal/cache"
	"github.com/adiwira/cashflow-server/internal/config"
	"github.com/adiwira/cashflow-server/internal/ledger"
	"github.com/adiwira/cashflow-server/internal/models"
	"github.com/adiwira/cashflow-server/internal/repository"
)

// Service defines all the business logic operations
type Service interface {
	// Account operations
	CreateAccount(ctx context.Context, username string, req models.CreateAccountRequest) (*models.Account, error)
	ListAccounts(ctx context.Context, username string) ([]models.Account, error)
	RenameAccount(ctx context.Context, username, accountID string, req models.RenameAccountRequest) error
	DeleteAccount(ctx context.Context, username, accountID string) error

	// Transaction operations
	CreateTransaction(ctx context.Context, username string, req models.CreateTransactionRequest) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, username, transactionID string, req models.UpdateTransactionRequest) error
	DeleteTransaction(ctx context.Context, username, transactionID string) error
	ListAuditRecords(ctx context.Context, username, transactionID string, limit int) ([]models.AuditRecord, error)

	// Switch operations
	CreateSwitch(ctx context.Context, username string, req models.CreateSwitchRequest) (string, error)
	GetSwitch(ctx context.Context, username, transferID string) (*models.Switch, error)
	UpdateSwitch(ctx context.Context, username, transferID string, req models.UpdateSwitchRequest) error
	DeleteSwitch(ctx context.Context, username, transferID string) error

	// Budget and payday operations
	ListBudgets(ctx context.Context, username, month string) (string, []models.Budget, error)
	UpsertBudget(ctx context.Context, username string, req models.UpsertBudgetRequest) (string, error)
	UpdateBudget(ctx context.Context, username, budgetID string, req models.UpdateBudgetRequest) error
	DeleteBudget(ctx context.Context, username, budgetID string) error
	GetPayday(ctx context.Context, username, month string) (*models.PaydayInfo, error)
	SetPayday(ctx context.Context, username string, req models.SetPaydayRequest) error

	// Read operations
	LedgerPage(ctx context.Context, username string, req models.LedgerPageRequest) (*models.LedgerPageResponse, error)
	MonthSummary(ctx context.Context, username, month string) (*models.MonthSummaryResponse, error)
	Analysis(ctx context.Context, username, month string) (*models.AnalysisResponse, error)
	BudgetShift(ctx context.Context, username, month, strategy string) (*ledger.ShiftReport, error)
	RecomputeBalances(ctx context.Context, username string) (*models.RecomputeReport, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo  repository.Repository
	cache *cache.TimedCache
	cfg   *config.Config
	log   zerolog.Logger
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, cache *cache.TimedCache, cfg *config.Config, log zerolog.Logger) Service {
	return &DefaultService{
		repo:  repo,
		cache: cache,
		cfg:   cfg,
		log:   log,
	}
}

// invalidateOwner drops every cached aggregate for the owner. Called after
// any write that could change what a cached read would return.
func (s *DefaultService) invalidateOwner(ctx context.Context, username string) {
	s.cache.InvalidatePrefix(ctx, username+":")
}

// monthOrCurrent validates a YYYY-MM month, defaulting to the current one.
func monthOrCurrent(month string) (string, error) {
	if month == "" {
		return time.Now().UTC().Format("2006-01"), nil
	}
	if _, _, err := ledger.ParseMonth(month); err != nil {
		return "", err
	}
	return month, nil
}

// paydayWindow resolves a month's payday configuration and its cycle
// window, chaining the previous month's day so adjoining cycles share a
// boundary.
func (s *DefaultService) paydayWindow(ctx context.Context, username, month string) (*models.PaydayInfo, ledger.CycleWindow, error) {
	day, source, overrideDay, err := s.repo.PaydayDay(ctx, username, month)
	if err != nil {
		return nil, ledger.CycleWindow{}, err
	}
	defaultDay, err := s.repo.DefaultPaydayDay(ctx, username)
	if err != nil {
		return nil, ledger.CycleWindow{}, err
	}
	prevDay, _, _, err := s.repo.PaydayDay(ctx, username, ledger.PrevMonth(month))
	if err != nil {
		return nil, ledger.CycleWindow{}, err
	}

	window, err := ledger.MonthRange(month, day, prevDay, time.Now().UTC())
	if err != nil {
		return nil, ledger.CycleWindow{}, err
	}

	info := &models.PaydayInfo{
		Month:       month,
		Day:         day,
		Source:      source,
		DefaultDay:  defaultDay,
		OverrideDay: overrideDay,
	}
	return info, window, nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/adiwira/cashflow-server/internal/ledger"
	"github.com/adiwira/cashflow-server/internal/models"
)

// Account operations
func (s *DefaultService) CreateAccount(ctx context.Context, username string, req models.CreateAccountRequest) (*models.Account, error) {
	account, err := s.repo.CreateAccount(ctx, username, req.Name, req.InitialBalance, req.MonthlyLimit, req.NoLimit)
	if err != nil {
		return nil, err
	}

	s.invalidateOwner(ctx, username)
	return account, nil
}

func (s *DefaultService) ListAccounts(ctx context.Context, username string) ([]models.Account, error) {
	return s.repo.ListAccounts(ctx, username)
}

func (s *DefaultService) RenameAccount(ctx context.Context, username, accountID string, req models.RenameAccountRequest) error {
	if err := s.repo.RenameAccount(ctx, username, accountID, req.Name); err != nil {
		return err
	}

	s.invalidateOwner(ctx, username)
	return nil
}

func (s *DefaultService) DeleteAccount(ctx context.Context, username, accountID string) error {
	if err := s.repo.DeleteAccount(ctx, username, accountID); err != nil {
		return err
	}

	s.invalidateOwner(ctx, username)
	return nil
}

// Budget operations
func (s *DefaultService) ListBudgets(ctx context.Context, username, month string) (string, []models.Budget, error) {
	month, err := monthOrCurrent(month)
	if err != nil {
		return "", nil, err
	}

	budgets, err := s.repo.ListBudgets(ctx, username, month)
	if err != nil {
		return "", nil, err
	}
	return month, budgets, nil
}

func (s *DefaultService) UpsertBudget(ctx context.Context, username string, req models.UpsertBudgetRequest) (string, error) {
	if _, _, err := ledger.ParseMonth(req.Month); err != nil {
		return "", err
	}

	budgetID, err := s.repo.UpsertBudget(ctx, username, req.AccountID, req.Month, req.Amount)
	if err != nil {
		return "", err
	}

	s.invalidateOwner(ctx, username)
	return budgetID, nil
}

func (s *DefaultService) UpdateBudget(ctx context.Context, username, budgetID string, req models.UpdateBudgetRequest) error {
	if err := s.repo.UpdateBudget(ctx, username, budgetID, req.Amount); err != nil {
		return err
	}

	s.invalidateOwner(ctx, username)
	return nil
}

func (s *DefaultService) DeleteBudget(ctx context.Context, username, budgetID string) error {
	if err := s.repo.DeleteBudget(ctx, username, budgetID); err != nil {
		return err
	}

	s.invalidateOwner(ctx, username)
	return nil
}

// Payday operations
func (s *DefaultService) GetPayday(ctx context.Context, username, month string) (*models.PaydayInfo, error) {
	month, err := monthOrCurrent(month)
	if err != nil {
		return nil, err
	}

	day, source, overrideDay, err := s.repo.PaydayDay(ctx, username, month)
	if err != nil {
		return nil, err
	}
	defaultDay, err := s.repo.DefaultPaydayDay(ctx, username)
	if err != nil {
		return nil, err
	}

	info := &models.PaydayInfo{
		Month:       month,
		Day:         day,
		Source:      source,
		DefaultDay:  defaultDay,
		OverrideDay: overrideDay,
	}

	// The in-progress cycle only makes sense against today.
	now := time.Now().UTC()
	if month == now.Format("2006-01") {
		window, err := ledger.ExportRange(day, now)
		if err != nil {
			return nil, err
		}
		info.CycleToDate = &models.DateRange{From: window.FromDate, To: window.ToDate}
	}

	return info, nil
}

// SetPayday updates either one month's override (set or clear) or, without
// a month, the owner's default day.
func (s *DefaultService) SetPayday(ctx context.Context, username string, req models.SetPaydayRequest) error {
	if req.Month != "" {
		if _, _, err := ledger.ParseMonth(req.Month); err != nil {
			return err
		}
		if req.ClearOverride {
			if err := s.repo.ClearPaydayOverride(ctx, username, req.Month); err != nil {
				return err
			}
			s.invalidateOwner(ctx, username)
			return nil
		}
		if req.Day < 1 || req.Day > 31 {
			return fmt.Errorf("%w: payday day must be between 1 and 31", ledger.ErrValidation)
		}
		if err := s.repo.SetPaydayOverride(ctx, username, req.Month, req.Day); err != nil {
			return err
		}
		s.invalidateOwner(ctx, username)
		return nil
	}

	if req.Day < 1 || req.Day > 31 {
		return fmt.Errorf("%w: payday day must be between 1 and 31", ledger.ErrValidation)
	}
	if err := s.repo.SetDefaultPaydayDay(ctx, username, req.Day); err != nil {
		return err
	}
	s.invalidateOwner(ctx, username)
	return nil
}

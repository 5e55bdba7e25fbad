package service

import (
	"context"
	"fmt"
	"time"

	"github.com/adiwira/cashflow-server/internal/ledger"
	"github.com/adiwira/cashflow-server/internal/models"
	"github.com/adiwira/cashflow-server/internal/repository"
)

const deleteReasonUserRequest = "user_request"

// Transaction operations
func (s *DefaultService) CreateTransaction(ctx context.Context, username string, req models.CreateTransactionRequest) (*models.Transaction, error) {
	date, err := ledger.ParseEventTime(req.Date, time.Now())
	if err != nil {
		return nil, err
	}
	if req.IsCycleTopup && req.Type == ledger.Credit {
		return nil, fmt.Errorf("%w: cycle top-up only applies to debits", ledger.ErrValidation)
	}

	txn := &models.Transaction{
		AccountID:    req.AccountID,
		Type:         req.Type,
		Name:         req.Name,
		Amount:       req.Amount,
		Date:         date,
		IsCycleTopup: req.IsCycleTopup,
	}
	if err := s.repo.CreateTransaction(ctx, username, txn); err != nil {
		return nil, err
	}

	s.invalidateOwner(ctx, username)
	return txn, nil
}

func (s *DefaultService) UpdateTransaction(ctx context.Context, username, transactionID string, req models.UpdateTransactionRequest) error {
	upd := repository.TransactionUpdate{
		AccountID:    req.AccountID,
		Type:         req.Type,
		Name:         req.Name,
		Amount:       req.Amount,
		IsCycleTopup: req.IsCycleTopup,
	}
	if req.Date != nil {
		date, err := ledger.ParseEventTime(*req.Date, time.Now())
		if err != nil {
			return err
		}
		upd.Date = &date
	}

	if err := s.repo.UpdateTransaction(ctx, username, transactionID, upd); err != nil {
		return err
	}

	s.invalidateOwner(ctx, username)
	return nil
}

func (s *DefaultService) DeleteTransaction(ctx context.Context, username, transactionID string) error {
	if err := s.repo.SoftDeleteTransaction(ctx, username, transactionID, deleteReasonUserRequest); err != nil {
		return err
	}

	s.invalidateOwner(ctx, username)
	return nil
}

func (s *DefaultService) ListAuditRecords(ctx context.Context, username, transactionID string, limit int) ([]models.AuditRecord, error) {
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return s.repo.AuditRecords(ctx, username, transactionID, limit)
}

// Switch operations
func (s *DefaultService) CreateSwitch(ctx context.Context, username string, req models.CreateSwitchRequest) (string, error) {
	if req.SourceAccountID == req.TargetAccountID {
		return "", fmt.Errorf("%w: source and target must differ", ledger.ErrValidation)
	}
	date, err := ledger.ParseEventTime(req.Date, time.Now())
	if err != nil {
		return "", err
	}

	transferID, err := s.repo.CreateSwitch(ctx, username, req.SourceAccountID, req.TargetAccountID, req.Amount, date)
	if err != nil {
		return "", err
	}

	s.invalidateOwner(ctx, username)
	return transferID, nil
}

func (s *DefaultService) GetSwitch(ctx context.Context, username, transferID string) (*models.Switch, error) {
	return s.repo.GetSwitch(ctx, username, transferID)
}

func (s *DefaultService) UpdateSwitch(ctx context.Context, username, transferID string, req models.UpdateSwitchRequest) error {
	upd := repository.SwitchUpdate{
		SourceAccountID: req.SourceAccountID,
		TargetAccountID: req.TargetAccountID,
		Amount:          req.Amount,
	}
	if req.Date != nil {
		date, err := ledger.ParseEventTime(*req.Date, time.Now())
		if err != nil {
			return err
		}
		upd.Date = &date
	}

	if err := s.repo.UpdateSwitch(ctx, username, transferID, upd); err != nil {
		return err
	}

	s.invalidateOwner(ctx, username)
	return nil
}

func (s *DefaultService) DeleteSwitch(ctx context.Context, username, transferID string) error {
	if err := s.repo.DeleteSwitch(ctx, username, transferID, deleteReasonUserRequest); err != nil {
		return err
	}

	s.invalidateOwner(ctx, username)
	return nil
}

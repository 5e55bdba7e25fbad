package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/adiwira/cashflow-server/internal/ledger"
	"github.com/adiwira/cashflow-server/internal/models"
	"github.com/adiwira/cashflow-server/internal/repository"
)

// LedgerPage assembles one page of the ledger read path: resolve the
// window, replay the cursor, fetch limit+1 raw events, and rebase their
// running deltas onto the pre-window balance.
func (s *DefaultService) LedgerPage(ctx context.Context, username string, req models.LedgerPageRequest) (*models.LedgerPageResponse, error) {
	scope := req.Scope
	if scope == "" {
		scope = "all"
	}
	if scope != "all" && scope != "account" {
		return nil, fmt.Errorf("%w: invalid scope", ledger.ErrValidation)
	}
	if scope == "account" {
		if req.AccountID == "" {
			return nil, fmt.Errorf("%w: account_id required for scope=account", ledger.ErrValidation)
		}
		if _, err := s.repo.GetAccount(ctx, username, req.AccountID); err != nil {
			return nil, err
		}
	}

	// Default range: last 30 days.
	toDate := req.ToDate
	if toDate == "" {
		toDate = time.Now().UTC().Format("2006-01-02")
	}
	to, err := ledger.ParseDate(toDate, true)
	if err != nil {
		return nil, err
	}
	fromDate := req.FromDate
	if fromDate == "" {
		fromDate = to.Truncate(24 * time.Hour).AddDate(0, 0, -30).Format("2006-01-02")
	}
	from, err := ledger.ParseDate(fromDate, false)
	if err != nil {
		return nil, err
	}

	order := req.Order
	if order != "asc" {
		order = "desc"
	}
	limit := req.Limit
	if limit < 1 {
		limit = 25
	}
	if limit > 100 {
		limit = 100
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	search := ledger.SearchPattern(req.Search)

	cursor, err := ledger.DecodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		if err := cursor.Bind(scope, req.AccountID, fromDate, toDate, order, search); err != nil {
			return nil, err
		}
		offset = cursor.Offset
	}

	base, err := s.repo.BaseBalance(ctx, username, scope, req.AccountID, from)
	if err != nil {
		return nil, err
	}

	events, err := s.repo.LedgerPage(ctx, repository.LedgerQuery{
		Username:       username,
		Scope:          scope,
		AccountID:      req.AccountID,
		From:           from,
		To:             to,
		Limit:          limit + 1,
		Offset:         offset,
		Order:          order,
		Search:         search,
		ExpandSwitches: req.ExpandSwitches,
	})
	if err != nil {
		return nil, err
	}

	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}

	rows := make([]models.LedgerRow, 0, len(events))
	for i, ev := range events {
		rows = append(rows, models.LedgerRow{
			No:           offset + i + 1,
			EventID:      ev.EventID,
			AccountID:    ev.AccountID,
			AccountName:  ev.AccountName,
			Name:         ev.Name,
			Date:         ev.Date,
			Debit:        ev.Debit,
			Credit:       ev.Credit,
			Balance:      base + ev.RunningDelta,
			IsTransfer:   ev.IsTransfer,
			IsCycleTopup: ev.IsCycleTopup,
			TransferID:   ev.TransferID,
		})
	}

	paging := models.Paging{
		Limit:      limit,
		Offset:     offset,
		HasMore:    hasMore,
		NextOffset: offset + len(rows),
	}
	if hasMore {
		paging.NextCursor = ledger.Cursor{
			Offset:    paging.NextOffset,
			Scope:     scope,
			AccountID: req.AccountID,
			FromDate:  fromDate,
			ToDate:    toDate,
			Order:     order,
			Search:    search,
		}.Encode()
	}

	resp := &models.LedgerPageResponse{
		Scope:  scope,
		Range:  models.DateRange{From: fromDate, To: toDate},
		Rows:   rows,
		Paging: paging,
	}

	if req.IncludeSummary == nil || *req.IncludeSummary {
		summary, err := s.ledgerSummary(ctx, username, to)
		if err != nil {
			return nil, err
		}
		resp.Summary = summary
	}
	return resp, nil
}

// ledgerSummary returns every account's balance at the window close,
// cached per (owner, close instant).
func (s *DefaultService) ledgerSummary(ctx context.Context, username string, to time.Time) (*models.LedgerSummary, error) {
	key := fmt.Sprintf("%s:ledger:%s", username, to.UTC().Format(time.RFC3339Nano))
	var cached models.LedgerSummary
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	accounts, err := s.repo.ListAccounts(ctx, username)
	if err != nil {
		return nil, err
	}
	balances, err := s.repo.AccountBalances(ctx, username, to)
	if err != nil {
		return nil, err
	}

	summary := models.LedgerSummary{Accounts: make([]models.SummaryAccountBalance, 0, len(accounts))}
	for _, acc := range accounts {
		balance := balances[acc.ID]
		summary.Accounts = append(summary.Accounts, models.SummaryAccountBalance{
			AccountID:   acc.ID,
			AccountName: acc.Name,
			Balance:     balance,
		})
		summary.TotalAsset += balance
	}
	sort.SliceStable(summary.Accounts, func(i, j int) bool {
		return strings.ToLower(summary.Accounts[i].AccountName) < strings.ToLower(summary.Accounts[j].AccountName)
	})

	s.cache.Set(ctx, key, summary, s.cfg.Cache.LedgerTTL)
	return &summary, nil
}

// MonthSummary reports each account's cycle activity and budget status for
// a payday-anchored month window.
func (s *DefaultService) MonthSummary(ctx context.Context, username, month string) (*models.MonthSummaryResponse, error) {
	month, err := monthOrCurrent(month)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s:summary:%s", username, month)
	var cached models.MonthSummaryResponse
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	payday, window, err := s.paydayWindow(ctx, username, month)
	if err != nil {
		return nil, err
	}

	accounts, err := s.repo.ListAccounts(ctx, username)
	if err != nil {
		return nil, err
	}

	resp := &models.MonthSummaryResponse{
		Month:    month,
		Range:    models.DateRange{From: window.FromDate, To: window.ToDate},
		Payday:   *payday,
		Accounts: []models.MonthAccountSummary{},
	}
	if len(accounts) == 0 {
		s.cache.Set(ctx, key, resp, s.cfg.Cache.SummaryTTL)
		return resp, nil
	}

	startCutoff := window.From.Add(-time.Millisecond)
	balancesStart, err := s.repo.AccountBalances(ctx, username, startCutoff)
	if err != nil {
		return nil, err
	}
	balancesEnd, err := s.repo.AccountBalances(ctx, username, window.To)
	if err != nil {
		return nil, err
	}
	flows, err := s.repo.PeriodAccountTotals(ctx, username, window.From, window.To)
	if err != nil {
		return nil, err
	}
	flowByAccount := make(map[string]repository.AccountFlow, len(flows))
	for _, f := range flows {
		flowByAccount[f.AccountID] = f
	}
	budgets, err := s.repo.ListBudgets(ctx, username, month)
	if err != nil {
		return nil, err
	}
	budgetByAccount := make(map[string]models.Budget, len(budgets))
	for _, b := range budgets {
		budgetByAccount[b.AccountID] = b
	}

	for _, acc := range accounts {
		flow := flowByAccount[acc.ID]
		item := models.MonthAccountSummary{
			AccountID:       acc.ID,
			AccountName:     acc.Name,
			StartingBalance: balancesStart[acc.ID],
			CurrentBalance:  balancesEnd[acc.ID],
			TotalIn:         flow.TotalIn,
			TotalOut:        flow.TotalOut,
		}
		if b, ok := budgetByAccount[acc.ID]; ok {
			amount := b.Amount
			used := flow.TotalOut
			item.BudgetID = &b.ID
			item.Budget = &amount
			item.BudgetUsed = &used
			item.BudgetPct, item.BudgetStatus, item.BudgetRemaining = ledger.ComputeBudgetStatus(&amount, used)
		}
		resp.TotalAsset += balancesEnd[acc.ID]
		resp.Accounts = append(resp.Accounts, item)
	}

	s.cache.Set(ctx, key, resp, s.cfg.Cache.SummaryTTL)
	return resp, nil
}

// Analysis reports cycle flow totals, daily and weekly series, and
// per-account breakdowns.
func (s *DefaultService) Analysis(ctx context.Context, username, month string) (*models.AnalysisResponse, error) {
	month, err := monthOrCurrent(month)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s:analysis:%s", username, month)
	var cached models.AnalysisResponse
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	payday, window, err := s.paydayWindow(ctx, username, month)
	if err != nil {
		return nil, err
	}

	totalIn, totalOut, err := s.repo.OwnerTotals(ctx, username, window.From, window.To)
	if err != nil {
		return nil, err
	}

	days, err := s.repo.DailyTotals(ctx, username, window.From, window.To)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string][2]int64, len(days))
	for _, d := range days {
		byDay[d.Day.Format("2006-01-02")] = [2]int64{d.TotalIn, d.TotalOut}
	}
	daily := ledger.BuildDailySeries(window, byDay)
	weekly := ledger.BuildWeeklySeries(daily)

	flows, err := s.repo.PeriodAccountTotals(ctx, username, window.From, window.To)
	if err != nil {
		return nil, err
	}
	switchFlows, err := s.repo.SwitchAccountTotals(ctx, username, window.From, window.To)
	if err != nil {
		return nil, err
	}
	switchByAccount := make(map[string]repository.SwitchFlow, len(switchFlows))
	for _, f := range switchFlows {
		switchByAccount[f.AccountID] = f
	}

	categories := make([]models.CategoryTotal, 0, len(flows))
	for _, f := range flows {
		sw := switchByAccount[f.AccountID]
		categories = append(categories, models.CategoryTotal{
			AccountID:   f.AccountID,
			AccountName: f.AccountName,
			TotalIn:     f.TotalIn,
			TotalOut:    f.TotalOut,
			Net:         f.TotalIn - f.TotalOut,
			SwitchIn:    sw.SwitchIn,
			SwitchOut:   sw.SwitchOut,
		})
	}

	balances, err := s.repo.AccountBalances(ctx, username, window.To)
	if err != nil {
		return nil, err
	}
	var totalAsset int64
	for _, balance := range balances {
		totalAsset += balance
	}

	resp := &models.AnalysisResponse{
		Month:      month,
		Range:      models.DateRange{From: window.FromDate, To: window.ToDate},
		Payday:     *payday,
		TotalAsset: totalAsset,
		Totals:     models.FlowTotals{TotalIn: totalIn, TotalOut: totalOut, Net: totalIn - totalOut},
		Daily:      daily,
		Weekly:     weekly,
		Categories: categories,
	}

	s.cache.Set(ctx, key, resp, s.cfg.Cache.SummaryTTL)
	return resp, nil
}

// BudgetShift suggests per-account budget reallocations for a cycle based
// on real flows and internal transfer pressure.
func (s *DefaultService) BudgetShift(ctx context.Context, username, month, strategy string) (*ledger.ShiftReport, error) {
	month, err := monthOrCurrent(month)
	if err != nil {
		return nil, err
	}
	resolved := ledger.ResolveStrategy(strategy)

	key := fmt.Sprintf("%s:shift:%s:%s", username, month, resolved.Name)
	var cached ledger.ShiftReport
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	_, window, err := s.paydayWindow(ctx, username, month)
	if err != nil {
		return nil, err
	}

	accounts, err := s.repo.ListAccounts(ctx, username)
	if err != nil {
		return nil, err
	}
	budgets, err := s.repo.ListBudgets(ctx, username, month)
	if err != nil {
		return nil, err
	}
	budgetByAccount := make(map[string]int64, len(budgets))
	for _, b := range budgets {
		budgetByAccount[b.AccountID] = b.Amount
	}
	flows, err := s.repo.PeriodAccountTotals(ctx, username, window.From, window.To)
	if err != nil {
		return nil, err
	}
	flowByAccount := make(map[string]repository.AccountFlow, len(flows))
	for _, f := range flows {
		flowByAccount[f.AccountID] = f
	}
	switchFlows, err := s.repo.SwitchAccountTotals(ctx, username, window.From, window.To)
	if err != nil {
		return nil, err
	}
	switchByAccount := make(map[string]repository.SwitchFlow, len(switchFlows))
	for _, f := range switchFlows {
		switchByAccount[f.AccountID] = f
	}
	edges, err := s.repo.SwitchEdges(ctx, username, window.From, window.To)
	if err != nil {
		return nil, err
	}

	inputs := make([]ledger.ShiftAccountInput, 0, len(accounts))
	for _, acc := range accounts {
		flow := flowByAccount[acc.ID]
		sw := switchByAccount[acc.ID]
		input := ledger.ShiftAccountInput{
			AccountID:    acc.ID,
			AccountName:  acc.Name,
			NoLimit:      acc.NoLimit,
			MonthlyLimit: acc.MonthlyLimit,
			Spend:        flow.TotalOut,
			Income:       flow.TotalIn,
			SwitchIn:     sw.SwitchIn,
			SwitchOut:    sw.SwitchOut,
		}
		if amount, ok := budgetByAccount[acc.ID]; ok {
			input.Budget = &amount
		}
		inputs = append(inputs, input)
	}

	report := ledger.AnalyzeBudgetShift(month, window, strategy, inputs, edges)
	s.cache.Set(ctx, key, report, s.cfg.Cache.SummaryTTL)
	return &report, nil
}

// RecomputeBalances replays every account's full history and reports any
// negative dips, as a consistency check over the raw transaction log.
func (s *DefaultService) RecomputeBalances(ctx context.Context, username string) (*models.RecomputeReport, error) {
	accounts, err := s.repo.ListAccounts(ctx, username)
	if err != nil {
		return nil, err
	}

	report := &models.RecomputeReport{
		CheckedAt: time.Now().UTC(),
		Accounts:  make([]models.RecomputeAccount, 0, len(accounts)),
	}
	for _, acc := range accounts {
		entries, err := s.repo.AccountEntries(ctx, acc.ID)
		if err != nil {
			return nil, err
		}
		replay := ledger.Replay(entries)
		if replay.FirstNegativeAt != nil {
			report.HasNegative = true
		}
		report.TotalAsset += replay.Balance
		report.Accounts = append(report.Accounts, models.RecomputeAccount{
			AccountID:         acc.ID,
			AccountName:       acc.Name,
			TransactionsCount: replay.Count,
			CurrentBalance:    replay.Balance,
			MinBalance:        replay.MinBalance,
			FirstNegativeAt:   replay.FirstNegativeAt,
		})
	}

	s.invalidateOwner(ctx, username)
	return report, nil
}

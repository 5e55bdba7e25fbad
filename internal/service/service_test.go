package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/adiwira/cashflow-server/internal/cache"
	"github.com/adiwira/cashflow-server/internal/config"
	"github.com/adiwira/cashflow-server/internal/ledger"
	"github.com/adiwira/cashflow-server/internal/models"
	"github.com/adiwira/cashflow-server/internal/repository"
)

// fakeRepo is an in-memory Repository stand-in. Fields are the canned
// responses; call counters let tests assert on caching and pass-through
// behaviour.
type fakeRepo struct {
	accounts    []models.Account
	budgets     []models.Budget
	defaultDay  int
	overrides   map[string]int
	baseBalance int64
	events      []repository.LedgerEvent
	balances    map[string]int64
	flows       []repository.AccountFlow
	switchFlows []repository.SwitchFlow
	edges       []ledger.SwitchEdge
	entries     map[string][]ledger.Entry

	lastLedgerQuery   repository.LedgerQuery
	lastAuditLimit    int
	listAccountsCalls int
	createdTxn        *models.Transaction
	setDefaultDay     int
	setOverride       map[string]int
	clearedOverride   string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		defaultDay:  25,
		overrides:   map[string]int{},
		balances:    map[string]int64{},
		entries:     map[string][]ledger.Entry{},
		setOverride: map[string]int{},
	}
}

func (f *fakeRepo) GetUser(ctx context.Context, username string) (*models.User, error) {
	return &models.User{Username: username}, nil
}

func (f *fakeRepo) SetDefaultPaydayDay(ctx context.Context, username string, day int) error {
	f.setDefaultDay = day
	return nil
}

func (f *fakeRepo) CreateAccount(ctx context.Context, username, name string, initialBalance int64, monthlyLimit *int64, noLimit bool) (*models.Account, error) {
	account := models.Account{ID: "acc-new", Username: username, Name: name, MonthlyLimit: monthlyLimit, NoLimit: noLimit}
	f.accounts = append(f.accounts, account)
	return &account, nil
}

func (f *fakeRepo) ListAccounts(ctx context.Context, username string) ([]models.Account, error) {
	f.listAccountsCalls++
	return f.accounts, nil
}

func (f *fakeRepo) GetAccount(ctx context.Context, username, accountID string) (*models.Account, error) {
	for _, acc := range f.accounts {
		if acc.ID == accountID {
			return &acc, nil
		}
	}
	return nil, ledger.ErrAccountNotFound
}

func (f *fakeRepo) RenameAccount(ctx context.Context, username, accountID, name string) error {
	return nil
}

func (f *fakeRepo) DeleteAccount(ctx context.Context, username, accountID string) error {
	return nil
}

func (f *fakeRepo) CreateTransaction(ctx context.Context, username string, txn *models.Transaction) error {
	txn.ID = "txn-new"
	f.createdTxn = txn
	return nil
}

func (f *fakeRepo) UpdateTransaction(ctx context.Context, username, transactionID string, upd repository.TransactionUpdate) error {
	return nil
}

func (f *fakeRepo) SoftDeleteTransaction(ctx context.Context, username, transactionID, reason string) error {
	return nil
}

func (f *fakeRepo) AuditRecords(ctx context.Context, username, transactionID string, limit int) ([]models.AuditRecord, error) {
	f.lastAuditLimit = limit
	return nil, nil
}

func (f *fakeRepo) CreateSwitch(ctx context.Context, username, sourceAccountID, targetAccountID string, amount int64, date time.Time) (string, error) {
	return "transfer-new", nil
}

func (f *fakeRepo) GetSwitch(ctx context.Context, username, transferID string) (*models.Switch, error) {
	return nil, ledger.ErrSwitchNotFound
}

func (f *fakeRepo) UpdateSwitch(ctx context.Context, username, transferID string, upd repository.SwitchUpdate) error {
	return nil
}

func (f *fakeRepo) DeleteSwitch(ctx context.Context, username, transferID, reason string) error {
	return nil
}

func (f *fakeRepo) ListBudgets(ctx context.Context, username, month string) ([]models.Budget, error) {
	return f.budgets, nil
}

func (f *fakeRepo) UpsertBudget(ctx context.Context, username, accountID, month string, amount int64) (string, error) {
	return "budget-new", nil
}

func (f *fakeRepo) UpdateBudget(ctx context.Context, username, budgetID string, amount int64) error {
	return nil
}

func (f *fakeRepo) DeleteBudget(ctx context.Context, username, budgetID string) error {
	return nil
}

func (f *fakeRepo) DefaultPaydayDay(ctx context.Context, username string) (int, error) {
	return f.defaultDay, nil
}

func (f *fakeRepo) PaydayDay(ctx context.Context, username, month string) (int, string, *int, error) {
	if day, ok := f.overrides[month]; ok {
		return day, "override", &day, nil
	}
	return f.defaultDay, "default", nil, nil
}

func (f *fakeRepo) SetPaydayOverride(ctx context.Context, username, month string, day int) error {
	f.setOverride[month] = day
	return nil
}

func (f *fakeRepo) ClearPaydayOverride(ctx context.Context, username, month string) error {
	f.clearedOverride = month
	return nil
}

func (f *fakeRepo) LedgerPage(ctx context.Context, q repository.LedgerQuery) ([]repository.LedgerEvent, error) {
	f.lastLedgerQuery = q
	events := f.events
	if q.Offset < len(events) {
		events = events[q.Offset:]
	} else {
		events = nil
	}
	if len(events) > q.Limit {
		events = events[:q.Limit]
	}
	return events, nil
}

func (f *fakeRepo) BaseBalance(ctx context.Context, username, scope, accountID string, before time.Time) (int64, error) {
	return f.baseBalance, nil
}

func (f *fakeRepo) AccountBalances(ctx context.Context, username string, upTo time.Time) (map[string]int64, error) {
	return f.balances, nil
}

func (f *fakeRepo) PeriodAccountTotals(ctx context.Context, username string, from, to time.Time) ([]repository.AccountFlow, error) {
	return f.flows, nil
}

func (f *fakeRepo) SwitchAccountTotals(ctx context.Context, username string, from, to time.Time) ([]repository.SwitchFlow, error) {
	return f.switchFlows, nil
}

func (f *fakeRepo) SwitchEdges(ctx context.Context, username string, from, to time.Time) ([]ledger.SwitchEdge, error) {
	return f.edges, nil
}

func (f *fakeRepo) OwnerTotals(ctx context.Context, username string, from, to time.Time) (int64, int64, error) {
	var totalIn, totalOut int64
	for _, fl := range f.flows {
		totalIn += fl.TotalIn
		totalOut += fl.TotalOut
	}
	return totalIn, totalOut, nil
}

func (f *fakeRepo) DailyTotals(ctx context.Context, username string, from, to time.Time) ([]repository.DayFlow, error) {
	return nil, nil
}

func (f *fakeRepo) AccountEntries(ctx context.Context, accountID string) ([]ledger.Entry, error) {
	return f.entries[accountID], nil
}

func newTestService(repo repository.Repository) Service {
	cfg := &config.Config{
		Cache: config.CacheConfig{LedgerTTL: 30 * time.Second, SummaryTTL: time.Minute},
	}
	return NewDefaultService(repo, cache.New(nil, "test", zerolog.Nop()), cfg, zerolog.Nop())
}

func strptr(s string) *string { return &s }

func TestLedgerPageAssembly(t *testing.T) {
	repo := newFakeRepo()
	repo.accounts = []models.Account{
		{ID: "acc-1", Name: "Main"},
		{ID: "acc-2", Name: "Savings"},
	}
	repo.baseBalance = 1000
	repo.balances = map[string]int64{"acc-1": 900, "acc-2": 600}
	repo.events = []repository.LedgerEvent{
		{EventID: "e3", AccountID: strptr("acc-1"), Name: "Salary", Debit: 500, RunningDelta: 500},
		{EventID: "e2", AccountID: strptr("acc-1"), Name: "Rent", Credit: 200, RunningDelta: 300},
		{EventID: "e1", AccountID: strptr("acc-2"), Name: "Groceries", Credit: 100, RunningDelta: 100},
	}
	svc := newTestService(repo)

	page, err := svc.LedgerPage(context.Background(), "alice", models.LedgerPageRequest{
		FromDate: "2026-03-01",
		ToDate:   "2026-03-31",
		Limit:    2,
	})
	assert.NoError(t, err)

	// Scope defaults to all, the raw fetch asks for one extra row.
	assert.Equal(t, "all", page.Scope)
	assert.Equal(t, 3, repo.lastLedgerQuery.Limit)
	assert.Equal(t, "desc", repo.lastLedgerQuery.Order)

	// Two rows on the page, balances rebased onto the pre-window balance.
	assert.Len(t, page.Rows, 2)
	assert.Equal(t, 1, page.Rows[0].No)
	assert.Equal(t, int64(1500), page.Rows[0].Balance)
	assert.Equal(t, int64(1300), page.Rows[1].Balance)

	// The third row signalled another page.
	assert.True(t, page.Paging.HasMore)
	assert.Equal(t, 2, page.Paging.NextOffset)
	assert.NotEmpty(t, page.Paging.NextCursor)

	// The issued cursor replays against the same query.
	cursor, err := ledger.DecodeCursor(page.Paging.NextCursor)
	assert.NoError(t, err)
	assert.Equal(t, 2, cursor.Offset)
	assert.NoError(t, cursor.Bind("all", "", "2026-03-01", "2026-03-31", "desc", ""))

	// Summary is included by default and sorted by account name.
	if assert.NotNil(t, page.Summary) {
		assert.Equal(t, int64(1500), page.Summary.TotalAsset)
		assert.Equal(t, "Main", page.Summary.Accounts[0].AccountName)
		assert.Equal(t, "Savings", page.Summary.Accounts[1].AccountName)
	}
}

func TestLedgerPageCursorReplay(t *testing.T) {
	repo := newFakeRepo()
	repo.baseBalance = 0
	repo.events = []repository.LedgerEvent{
		{EventID: "e3", RunningDelta: 300},
		{EventID: "e2", RunningDelta: 200},
		{EventID: "e1", RunningDelta: 100},
	}
	svc := newTestService(repo)
	noSummary := false

	token := ledger.Cursor{
		Offset:   2,
		Scope:    "all",
		FromDate: "2026-03-01",
		ToDate:   "2026-03-31",
		Order:    "desc",
	}.Encode()

	page, err := svc.LedgerPage(context.Background(), "alice", models.LedgerPageRequest{
		FromDate:       "2026-03-01",
		ToDate:         "2026-03-31",
		Limit:          2,
		Cursor:         token,
		IncludeSummary: &noSummary,
	})
	assert.NoError(t, err)

	// The cursor's offset wins; numbering continues across pages.
	assert.Len(t, page.Rows, 1)
	assert.Equal(t, 3, page.Rows[0].No)
	assert.False(t, page.Paging.HasMore)
	assert.Empty(t, page.Paging.NextCursor)
	assert.Nil(t, page.Summary)
}

func TestLedgerPageCursorMismatch(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	token := ledger.Cursor{
		Offset:   2,
		Scope:    "all",
		FromDate: "2026-02-01",
		ToDate:   "2026-02-28",
		Order:    "desc",
	}.Encode()

	_, err := svc.LedgerPage(context.Background(), "alice", models.LedgerPageRequest{
		FromDate: "2026-03-01",
		ToDate:   "2026-03-31",
		Cursor:   token,
	})
	assert.ErrorIs(t, err, ledger.ErrCursorMismatch)

	_, err = svc.LedgerPage(context.Background(), "alice", models.LedgerPageRequest{
		FromDate: "2026-03-01",
		ToDate:   "2026-03-31",
		Cursor:   "@@garbage@@",
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidCursor)
}

func TestLedgerPageScopeValidation(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.LedgerPage(ctx, "alice", models.LedgerPageRequest{Scope: "bogus"})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = svc.LedgerPage(ctx, "alice", models.LedgerPageRequest{Scope: "account"})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = svc.LedgerPage(ctx, "alice", models.LedgerPageRequest{Scope: "account", AccountID: "missing"})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestMonthSummary(t *testing.T) {
	repo := newFakeRepo()
	repo.accounts = []models.Account{{ID: "acc-1", Name: "Groceries"}}
	repo.balances = map[string]int64{"acc-1": 1200}
	repo.flows = []repository.AccountFlow{{AccountID: "acc-1", AccountName: "Groceries", TotalIn: 2000, TotalOut: 800}}
	repo.budgets = []models.Budget{{ID: "b1", AccountID: "acc-1", Month: "2026-03", Amount: 1000}}
	svc := newTestService(repo)

	resp, err := svc.MonthSummary(context.Background(), "alice", "2026-03")
	assert.NoError(t, err)
	assert.Equal(t, "2026-03", resp.Month)
	assert.Equal(t, 25, resp.Payday.Day)
	assert.Equal(t, "default", resp.Payday.Source)
	assert.Equal(t, "2026-02-25", resp.Range.From)
	assert.Equal(t, int64(1200), resp.TotalAsset)

	if assert.Len(t, resp.Accounts, 1) {
		acc := resp.Accounts[0]
		assert.Equal(t, int64(2000), acc.TotalIn)
		assert.Equal(t, int64(800), acc.TotalOut)
		assert.Equal(t, int64(1000), *acc.Budget)
		assert.Equal(t, int64(800), *acc.BudgetUsed)
		assert.Equal(t, int64(200), *acc.BudgetRemaining)
		assert.Equal(t, 80, *acc.BudgetPct)
		assert.Equal(t, ledger.StatusWarn, acc.BudgetStatus)
	}

	// A repeat within the TTL is served from cache.
	calls := repo.listAccountsCalls
	_, err = svc.MonthSummary(context.Background(), "alice", "2026-03")
	assert.NoError(t, err)
	assert.Equal(t, calls, repo.listAccountsCalls)
}

func TestMonthSummaryPaydayOverride(t *testing.T) {
	repo := newFakeRepo()
	repo.overrides["2026-03"] = 10
	svc := newTestService(repo)

	resp, err := svc.MonthSummary(context.Background(), "alice", "2026-03")
	assert.NoError(t, err)
	assert.Equal(t, 10, resp.Payday.Day)
	assert.Equal(t, "override", resp.Payday.Source)
	// Previous month has no override, so the window opens on the default
	// day.
	assert.Equal(t, "2026-02-25", resp.Range.From)
	assert.Equal(t, "2026-03-09", resp.Range.To)
}

func TestBudgetShift(t *testing.T) {
	repo := newFakeRepo()
	repo.accounts = []models.Account{
		{ID: "acc-1", Name: "Groceries"},
		{ID: "acc-2", Name: "Savings"},
	}
	repo.budgets = []models.Budget{
		{ID: "b1", AccountID: "acc-1", Month: "2026-03", Amount: 1000},
		{ID: "b2", AccountID: "acc-2", Month: "2026-03", Amount: 2000},
	}
	repo.flows = []repository.AccountFlow{
		{AccountID: "acc-1", AccountName: "Groceries", TotalOut: 1200},
		{AccountID: "acc-2", AccountName: "Savings", TotalOut: 400},
	}
	repo.switchFlows = []repository.SwitchFlow{
		{AccountID: "acc-1", SwitchIn: 300},
		{AccountID: "acc-2", SwitchOut: 300},
	}
	repo.edges = []ledger.SwitchEdge{
		{SourceAccountID: "acc-2", SourceAccountName: "Savings", TargetAccountID: "acc-1", TargetAccountName: "Groceries", Amount: 300},
	}
	svc := newTestService(repo)

	report, err := svc.BudgetShift(context.Background(), "alice", "2026-03", "")
	assert.NoError(t, err)
	assert.Equal(t, "normal", report.Strategy)
	assert.Len(t, report.SwitchEdges, 1)

	// The pressured account sorts first with an under-allocated verdict.
	assert.Equal(t, "acc-1", report.Accounts[0].AccountID)
	assert.Equal(t, ledger.ShiftUnderAllocated, report.Accounts[0].Status)
	assert.Equal(t, ledger.ShiftDonorCapacity, report.Accounts[1].Status)
}

func TestCreateTransactionValidation(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	// Cycle top-ups only make sense on the income side.
	_, err := svc.CreateTransaction(ctx, "alice", models.CreateTransactionRequest{
		AccountID:    "acc-1",
		Type:         ledger.Credit,
		Name:         "Refill",
		Amount:       100,
		Date:         "2026-03-01",
		IsCycleTopup: true,
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = svc.CreateTransaction(ctx, "alice", models.CreateTransactionRequest{
		AccountID: "acc-1",
		Type:      ledger.Debit,
		Name:      "Salary",
		Amount:    100,
		Date:      "not-a-date",
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	txn, err := svc.CreateTransaction(ctx, "alice", models.CreateTransactionRequest{
		AccountID: "acc-1",
		Type:      ledger.Debit,
		Name:      "Salary",
		Amount:    100,
		Date:      "2026-03-01",
	})
	assert.NoError(t, err)
	assert.Equal(t, "txn-new", txn.ID)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), repo.createdTxn.Date)
}

func TestCreateSwitchSameAccount(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	_, err := svc.CreateSwitch(context.Background(), "alice", models.CreateSwitchRequest{
		SourceAccountID: "acc-1",
		TargetAccountID: "acc-1",
		Amount:          100,
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestListAuditRecordsClampsLimit(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.ListAuditRecords(ctx, "alice", "", 0)
	assert.NoError(t, err)
	assert.Equal(t, 50, repo.lastAuditLimit)

	_, err = svc.ListAuditRecords(ctx, "alice", "", 999)
	assert.NoError(t, err)
	assert.Equal(t, 200, repo.lastAuditLimit)

	_, err = svc.ListAuditRecords(ctx, "alice", "", 10)
	assert.NoError(t, err)
	assert.Equal(t, 10, repo.lastAuditLimit)
}

func TestSetPayday(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	// Without a month the default day changes.
	assert.NoError(t, svc.SetPayday(ctx, "alice", models.SetPaydayRequest{Day: 15}))
	assert.Equal(t, 15, repo.setDefaultDay)

	// With a month an override is written.
	assert.NoError(t, svc.SetPayday(ctx, "alice", models.SetPaydayRequest{Month: "2026-03", Day: 10}))
	assert.Equal(t, 10, repo.setOverride["2026-03"])

	// Clearing wins over the day field.
	assert.NoError(t, svc.SetPayday(ctx, "alice", models.SetPaydayRequest{Month: "2026-03", ClearOverride: true}))
	assert.Equal(t, "2026-03", repo.clearedOverride)

	// Out-of-range days are rejected in both shapes.
	assert.ErrorIs(t, svc.SetPayday(ctx, "alice", models.SetPaydayRequest{Day: 0}), ledger.ErrValidation)
	assert.ErrorIs(t, svc.SetPayday(ctx, "alice", models.SetPaydayRequest{Month: "2026-03", Day: 32}), ledger.ErrValidation)
	assert.ErrorIs(t, svc.SetPayday(ctx, "alice", models.SetPaydayRequest{Month: "March", Day: 10}), ledger.ErrValidation)
}

func TestGetPaydayCycleWindow(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	// The current month reports the elapsed cycle: opening on the last
	// resolved payday on or before today, closing today.
	info, err := svc.GetPayday(ctx, "alice", "")
	assert.NoError(t, err)
	now := time.Now().UTC()
	if assert.NotNil(t, info.CycleToDate) {
		assert.Equal(t, now.Format("2006-01-02"), info.CycleToDate.To)
		from, parseErr := time.Parse("2006-01-02", info.CycleToDate.From)
		assert.NoError(t, parseErr)
		assert.False(t, from.After(now))
		assert.Equal(t, ledger.ClampDay(from.Year(), from.Month(), 25), from.Day())
	}

	// Other months get no to-date window.
	info, err = svc.GetPayday(ctx, "alice", "2001-01")
	assert.NoError(t, err)
	assert.Equal(t, 25, info.Day)
	assert.Nil(t, info.CycleToDate)
}

func TestRecomputeBalances(t *testing.T) {
	repo := newFakeRepo()
	repo.accounts = []models.Account{
		{ID: "acc-1", Name: "Main"},
		{ID: "acc-2", Name: "Savings"},
	}
	repo.entries = map[string][]ledger.Entry{
		"acc-1": {
			{ID: "t1", Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Type: ledger.Debit, Amount: 100},
			{ID: "t2", Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Type: ledger.Credit, Amount: 300},
			{ID: "t3", Date: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), Type: ledger.Debit, Amount: 400},
		},
		"acc-2": {
			{ID: "t4", Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Type: ledger.Debit, Amount: 500},
		},
	}
	svc := newTestService(repo)

	report, err := svc.RecomputeBalances(context.Background(), "alice")
	assert.NoError(t, err)
	assert.True(t, report.HasNegative)
	assert.Equal(t, int64(700), report.TotalAsset)

	main := report.Accounts[0]
	assert.Equal(t, 3, main.TransactionsCount)
	assert.Equal(t, int64(200), main.CurrentBalance)
	assert.Equal(t, int64(-200), main.MinBalance)
	if assert.NotNil(t, main.FirstNegativeAt) {
		assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), *main.FirstNegativeAt)
	}

	savings := report.Accounts[1]
	assert.False(t, savings.MinBalance < 0)
	assert.Nil(t, savings.FirstNegativeAt)
}

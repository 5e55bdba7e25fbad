package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/adiwira/cashflow-server/internal/config"
	"github.com/adiwira/cashflow-server/internal/models"
	"github.com/adiwira/cashflow-server/internal/repository"
)

const testOwner = "repo-test-user"

// testContext holds the live database dependencies for repository tests.
type testContext struct {
	Repo repository.Repository
	DB   *sqlx.DB
}

// setupRepoTest connects to the test database named by TEST_DB_NAME and
// starts the suite from empty tables. Without TEST_DB_NAME the test is
// skipped, so the unit suites keep running on machines without Postgres.
func setupRepoTest(t *testing.T) *testContext {
	cfg := config.LoadConfig()
	if cfg.Database.TestDBName == "" {
		t.Skip("TEST_DB_NAME not set, skipping database tests")
	}
	cfg.Database.DBName = cfg.Database.TestDBName

	db, err := config.SetupDatabase(cfg)
	require.NoError(t, err, "Failed to set up test database")

	cleanupTestData(t, db)
	t.Cleanup(func() {
		cleanupTestData(t, db)
		db.Close()
	})

	return &testContext{
		Repo: repository.NewPostgresRepository(db),
		DB:   db,
	}
}

// cleanupTestData removes all rows, children before parents.
func cleanupTestData(t *testing.T, db *sqlx.DB) {
	tables := []string{
		"transaction_audit",
		"transactions",
		"budgets",
		"payday_overrides",
		"accounts",
		"users",
	}
	for _, table := range tables {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Logf("Warning: failed to clean %s: %v", table, err)
		}
	}
}

// createAccount makes an empty account for the shared test owner.
func createAccount(t *testing.T, repo repository.Repository, name string) *models.Account {
	account, err := repo.CreateAccount(context.Background(), testOwner, name, 0, nil, false)
	require.NoError(t, err)
	return account
}

// addTransaction inserts a validated row at an explicit instant.
func addTransaction(t *testing.T, repo repository.Repository, accountID, txType, name string, amount int64, date time.Time) *models.Transaction {
	txn := &models.Transaction{
		AccountID: accountID,
		Type:      txType,
		Name:      name,
		Amount:    amount,
		Date:      date,
	}
	require.NoError(t, repo.CreateTransaction(context.Background(), testOwner, txn))
	return txn
}

// balanceOf reads one account's balance through the read model.
func balanceOf(t *testing.T, repo repository.Repository, accountID string) int64 {
	balances, err := repo.AccountBalances(context.Background(), testOwner, time.Now().UTC().Add(24*time.Hour))
	require.NoError(t, err)
	return balances[accountID]
}

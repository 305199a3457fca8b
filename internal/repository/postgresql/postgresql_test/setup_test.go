package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/cmlabs-hris/backoffice-payroll-go/internal/pkg/database"
	"github.com/stretchr/testify/require"
)

// payrollTables are truncated between tests, children first.
var payrollTables = []string{
	"salary_payments",
	"employee_withdrawals",
	"staff_food_expenses",
	"deductions",
	"vacations",
	"attendances",
	"employees",
}

// newTestDB connects to TEST_DATABASE_URL, applies the schema and empties the
// payroll tables. The test is skipped when no database is configured.
func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	db, err := database.NewPostgreSQLDB(dsn)
	require.NoError(t, err, "failed to connect to test database")
	t.Cleanup(db.Close)

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, db))
	require.NoError(t, truncateAll(ctx, db))

	return db
}

func truncateAll(ctx context.Context, db *database.DB) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, table := range payrollTables {
		if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

func mustExec(t *testing.T, db *database.DB, sql string, args ...interface{}) {
	t.Helper()
	_, err := db.Exec(context.Background(), sql, args...)
	require.NoError(t, err)
}

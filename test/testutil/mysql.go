package testutil

import (
	"os"
	"testing"
)

// MySQLDSNEnv names the variable holding a disposable MySQL DSN for integration tests.
const MySQLDSNEnv = "STOCKALERT_TEST_MYSQL_DSN"

// MySQLDSN returns the integration DSN or skips the test when it is not configured.
func MySQLDSN(tb testing.TB) string {
	tb.Helper()

	if testing.Short() {
		tb.Skip("mysql integration disabled in short mode")
	}
	dsn := os.Getenv(MySQLDSNEnv)
	if dsn == "" {
		tb.Skipf("%s is not set", MySQLDSNEnv)
	}
	return dsn
}

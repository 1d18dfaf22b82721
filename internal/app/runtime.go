package app

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// Environment switches read outside LoadConfig.
const (
	// TestModeEnv set to "1" makes the pos and worker binaries return before dialing
	// Postgres or Redis.
	TestModeEnv = "POS_TEST_MODE"
	// TimezoneEnv names the location bills are stamped in.
	TimezoneEnv = "POS_TIMEZONE"
)

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	testModeFlag.Store(os.Getenv(TestModeEnv) == "1")
}

// InTestMode reports whether the process should skip runtime side effects such as
// opening the ledger pool or starting the daily close scheduler.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode updates the cached flag after environment changes.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	detectTestMode()
}

// SkipStartup reports whether binary should return early because the process runs
// under a test binary. It logs the decision on logger.
func SkipStartup(logger *slog.Logger, binary string) bool {
	if !InTestMode() {
		return false
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("test mode detected, skipping startup", slog.String("binary", binary), slog.String("env", TestModeEnv))
	return true
}

// Package testing switches the process into test mode when imported by a test
// binary, so the pos and worker commands exit before dialing Postgres or Redis.
// Bills are stamped in UTC unless the caller already chose a zone.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"

	"github.com/odyssey-erp/odyssey-pos/internal/app"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv(app.TestModeEnv, "1")
		if os.Getenv(app.TimezoneEnv) == "" {
			_ = os.Setenv(app.TimezoneEnv, "UTC")
		}
		app.RefreshTestMode()
	})
}

func init() {
	ensureTestMode()
}

// TestMain is used by packages that re-export it from their own tests.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}

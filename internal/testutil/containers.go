// Package testutil starts shared backing services for integration tests.
// Each container is started at most once per test binary and torn down
// by the testcontainers reaper when the binary exits.
package testutil

import (
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// RequireDocker skips the test in -short mode or when no healthy container
// provider is reachable.
func RequireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

func skipOnStartError(t *testing.T, name string, err error) {
	t.Helper()
	if err != nil {
		t.Skipf("%s container unavailable: %v", name, err)
	}
}

// ABOUTME: Test helpers for config tests
// ABOUTME: Provides utilities for environment variable management

package config

import (
	"os"
	"path/filepath"
	"testing"
)

var omnibusEnv = []string{
	"OMNIBUS_API_URL",
	"OMNIBUS_REQUEST_TIMEOUT",
	"OMNIBUS_ALL_PROXY",
	"OMNIBUS_MAX_TRANSFER_AMOUNT",
	"OMNIBUS_LOOKUP_RATE",
	"OMNIBUS_LOOKUP_BURST",
	"OMNIBUS_CREDENTIAL_SECRET",
	"OMNIBUS_ACTIVITY_CACHE_TTL",
}

// withCleanEnv blanks every OMNIBUS_* variable, points the config dir at a
// fresh temp dir, runs from an empty working directory, and applies extra.
// Returns the config dir. Restoration is handled by t.Setenv and t.Chdir.
//
// Example:
//
//	func TestSomething(t *testing.T) {
//	    dir := withCleanEnv(t, map[string]string{
//	        "OMNIBUS_REQUEST_TIMEOUT": "30",
//	    })
//	}
func withCleanEnv(t *testing.T, extra map[string]string) string {
	t.Helper()

	for _, key := range omnibusEnv {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	t.Setenv("OMNIBUS_CONFIG_DIR", dir)
	t.Chdir(t.TempDir())

	for key, value := range extra {
		t.Setenv(key, value)
	}
	return dir
}

// writeFile writes content to name under dir and returns the path
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

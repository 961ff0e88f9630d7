package analytics_test

import (
	"os"
	"testing"

	"fintrack/internal/config"
)

func TestMain(m *testing.M) {
	os.Setenv("FINTRACK_ENV", "test")
	config.Reset()
	os.Exit(m.Run())
}

package testutils

import (
	"flag"
	"os"
	"runtime"
	"testing"

	"github.com/fluttercandies/replyx/contrib/leakcheck"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var TestOpts TestOptions

type TestOptions struct {
	Verbose   bool
	LeakCheck bool
}

func envFlagBool(envName, name string, value bool, usage string) *bool {
	if envValue := os.Getenv(envName); envValue != "" {
		value = envValue != "0" && envValue != "false"
	}
	return flag.Bool(name, value, usage)
}

var verbose = envFlagBool("REPLYX_TEST_VERBOSE", "replyx.verbose", false,
	"Whether tests log through a development logger")
var leakCheck = envFlagBool("REPLYX_TEST_LEAKCHECK", "replyx.leakcheck", true,
	"Whether to fail the run when goroutines leak")

// SetupTests runs the tests in m and exits. Anything that should outlive the
// run, such as the default dispatcher, must be started before calling it.
func SetupTests(m *testing.M) {
	initialGoroutineCount := runtime.NumGoroutine()
	flag.Parse()

	TestOpts.Verbose = *verbose
	TestOpts.LeakCheck = *leakCheck

	result := m.Run()

	if TestOpts.LeakCheck && !leakcheck.ReportLeakedGoroutines(initialGoroutineCount, os.Stdout) {
		result = 1
	}

	os.Exit(result)
}

func MakeTestLogger(t *testing.T) *zap.Logger {
	if !TestOpts.Verbose {
		return zap.NewNop()
	}

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	return logger
}

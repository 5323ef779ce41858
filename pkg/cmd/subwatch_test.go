package cmd

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
)

var rootEnv = []string{
	"SUBWATCH_CONFIG", "TARGETS_JSON", "OUTPUT_DIR", "SUBWATCH_HISTORY_DB",
	"TELEGRAM_TOKEN", "TELEGRAM_CHAT_ID", "TELEGRAM_API_URL",
	"SUBFINDER_PATH", "AMASS_PATH", "FINDOMAIN_PATH", "BBOT_PATH",
	"SUBWATCH_RESOLVER", "SUBWATCH_LOG_LEVEL",
}

// Runs the command tree with a clean environment and returns what the
// command printed.
func executeRoot(test *testing.T, env map[string]string, args ...string) (string, error) {
	test.Helper()

	for _, e := range rootEnv {
		test.Setenv(e, "")
	}
	for k, v := range env {
		test.Setenv(k, v)
	}

	var out bytes.Buffer
	root := rootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args,
		"--env-file", filepath.Join(test.TempDir(), "missing.env"),
		"--log-level", "disabled",
	))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

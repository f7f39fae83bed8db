//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	SourceURL   string
	SourceToken string
	TargetURL   string
	TargetToken string
	ContentType string
	StrapiPath  string
	Verbose     bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		SourceURL:   os.Getenv("STRAPI_SOURCE_URL"),
		SourceToken: os.Getenv("STRAPI_SOURCE_TOKEN"),
		TargetURL:   os.Getenv("STRAPI_TARGET_URL"),
		TargetToken: os.Getenv("STRAPI_TARGET_TOKEN"),
		ContentType: getContentType(),
		StrapiPath:  getStrapiPath(),
		Verbose:     os.Getenv("STRAPI_VERBOSE") == "true",
	}
}

func getContentType() string {
	if uid := os.Getenv("STRAPI_TEST_CONTENT_TYPE"); uid != "" {
		return uid
	}

	return "api::article.article"
}

// getStrapiPath determines the path to the strapi binary
func getStrapiPath() string {
	if path := os.Getenv("STRAPI_BINARY_PATH"); path != "" {
		return path
	}

	for _, candidate := range []string{"../../strapi", "./strapi", "../strapi"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "strapi"
}

// SkipIfMissingConfig skips test if required config is missing
func (config *TestConfig) SkipIfMissingConfig(t *testing.T, needTarget bool) {
	t.Helper()

	if config.SourceURL == "" {
		t.Skip("STRAPI_SOURCE_URL not set, skipping integration test")
	}

	if needTarget && config.TargetURL == "" {
		t.Skip("STRAPI_TARGET_URL not set, skipping integration test")
	}

	if _, err := exec.LookPath(config.StrapiPath); err != nil {
		t.Skipf("strapi binary not found at %s, skipping integration test", config.StrapiPath)
	}
}

// CommandRunner runs the strapi binary against one instance
type CommandRunner struct {
	config *TestConfig
	t      *testing.T
	url    string
	token  string
	home   string
}

// NewCommandRunner creates a runner for the instance at url. Each runner has
// its own HOME so no user configuration leaks into the test.
func NewCommandRunner(t *testing.T, config *TestConfig, url, token string) *CommandRunner {
	t.Helper()

	return &CommandRunner{config: config, t: t, url: url, token: token, home: t.TempDir()}
}

// Run executes a strapi command and returns output
func (runner *CommandRunner) Run(args ...string) (stdout, stderr string, err error) {
	args = append(args, "--url", runner.url, "--no-color")
	if runner.token != "" {
		args = append(args, "--token", runner.token)
	}

	cmd := exec.Command(runner.config.StrapiPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+runner.home)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.StrapiPath, strings.Join(args, " "))
	}

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

// RunJSON runs a command with JSON output and decodes it into out
func (runner *CommandRunner) RunJSON(out interface{}, args ...string) error {
	stdout, stderr, err := runner.Run(append(args, "--output", "json")...)
	if err != nil {
		return fmt.Errorf("%w: %s", err, stderr)
	}

	err = json.Unmarshal([]byte(stdout), out)
	if err != nil {
		return fmt.Errorf("decoding %q: %w", stdout, err)
	}

	return nil
}

// GenerateTestName creates a unique test resource name
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

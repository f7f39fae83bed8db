package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fivetwenty-io/strapi-client/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesStructuredLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := logging.New("strapi-client", "debug", &buf)
	logger.Info("export started", map[string]interface{}{"content_types": 2})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))

	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "export started", line["message"])
	assert.Equal(t, "strapi-client", line["service"])
	assert.InDelta(t, 2.0, line["content_types"], 0)
	assert.Contains(t, line, "time")
}

func TestLogger_LevelFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := logging.New("svc", "warn", &buf)
	logger.Debug("hidden", nil)
	logger.Info("hidden", nil)
	logger.Warn("shown", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 1)
	assert.Contains(t, lines[0], "shown")
}

func TestLogger_BadLevelDefaultsToInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := logging.New("svc", "loud", &buf)
	logger.Debug("hidden", nil)
	logger.Info("shown", nil)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNop(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		logging.Nop().Error("nothing", map[string]interface{}{"a": 1})
	})
}

func TestLeveled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	leveled := logging.NewLeveled(logging.New("svc", "debug", &buf))
	leveled.Debug("retrying", "attempt", 2, "url", "http://x", "dangling")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))

	assert.Equal(t, "retrying", line["message"])
	assert.InDelta(t, 2.0, line["attempt"], 0)
	assert.Equal(t, "http://x", line["url"])
	assert.Equal(t, "dangling", line["extra"])
}

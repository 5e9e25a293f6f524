package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxevent"

	"storefront/internal/logging"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestEventLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := &eventLogger{logger: logging.NewWithWriter(&buf, "debug")}

	l.LogEvent(&fxevent.Provided{ConstructorName: "app.newPool()", OutputTypeNames: []string{"*pgxpool.Pool"}})
	l.LogEvent(&fxevent.OnStartExecuted{FunctionName: "app.runServer.func1()", Runtime: time.Millisecond})
	l.LogEvent(&fxevent.Invoked{FunctionName: "app.runServer()", Err: errors.New("missing type")})
	l.LogEvent(&fxevent.Stopping{Signal: syscall.SIGTERM})
	l.LogEvent(&fxevent.Stopped{})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 5)

	assert.Equal(t, "debug", lines[0]["l"])
	assert.Equal(t, "*pgxpool.Pool", lines[0]["types"])
	assert.Equal(t, "info", lines[1]["l"])
	assert.Equal(t, "start hook executed", lines[1]["m"])
	assert.Equal(t, "error", lines[2]["l"])
	assert.Equal(t, "missing type", lines[2]["e"])
	assert.Equal(t, "TERMINATED", lines[3]["signal"])
	assert.Equal(t, "stopped", lines[4]["m"])
}

func TestEventLoggerSuppliedFailure(t *testing.T) {
	var buf bytes.Buffer
	l := &eventLogger{logger: logging.NewWithWriter(&buf, "info")}

	l.LogEvent(&fxevent.Supplied{TypeName: "config.Config"})
	l.LogEvent(&fxevent.Supplied{TypeName: "config.Config", Err: errors.New("boom")})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "error", lines[0]["l"])
	assert.Equal(t, "supply failed", lines[0]["failure"])
}

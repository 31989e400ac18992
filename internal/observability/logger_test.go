package observability

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestStdLoggerRendersFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStdLogger(log.New(&buf, "", 0), false)

	logger.Info("poll cycle complete", Field{Key: "trader", Value: "0xabc"}, Field{Key: "fills", Value: 3})

	got := buf.String()
	if !strings.Contains(got, "INFO poll cycle complete") {
		t.Errorf("missing level/message: %q", got)
	}
	if !strings.Contains(got, "trader=0xabc") || !strings.Contains(got, "fills=3") {
		t.Errorf("missing fields: %q", got)
	}
}

func TestStdLoggerDebugGated(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStdLogger(log.New(&buf, "", 0), false)

	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug output emitted when disabled: %q", buf.String())
	}

	debugLogger := NewStdLogger(log.New(&buf, "", 0), true)
	debugLogger.Debug("visible")
	if !strings.Contains(buf.String(), "DEBUG visible") {
		t.Errorf("debug output missing when enabled: %q", buf.String())
	}
}

func TestSetLoggerNilRestoresNoop(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewStdLogger(log.New(&buf, "", 0), false))
	defer SetLogger(nil)

	Log().Info("recorded")
	if buf.Len() == 0 {
		t.Error("expected global logger output")
	}

	SetLogger(nil)
	buf.Reset()
	Log().Info("dropped")
	if buf.Len() != 0 {
		t.Error("noop logger must not write")
	}
}

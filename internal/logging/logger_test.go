package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, false).Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug record written without verbose: %q", buf.String())
	}

	NewLogger(&buf, true).Debug("shown", "hemisphere", "left")
	if !strings.Contains(buf.String(), "msg=shown") || !strings.Contains(buf.String(), "hemisphere=left") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

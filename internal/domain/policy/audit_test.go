package policy

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestAuditLogger_FlushesOnBufferFull(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAuditLogger(&buf, 2, "", zap.NewNop())

	logger.Record(AuditEvent{AuditID: "1", Severity: SeverityInfo, Action: ActionAllow})
	if buf.Len() != 0 {
		t.Fatalf("expected no flush before the buffer fills")
	}
	logger.Record(AuditEvent{AuditID: "2", Severity: SeverityInfo, Action: ActionAllow})

	lines := countLines(t, buf.String())
	if lines != 2 {
		t.Fatalf("expected 2 flushed lines, got %d", lines)
	}
}

func TestAuditLogger_SeverityFilterAppliedAtInsertion(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAuditLogger(&buf, 10, SeverityWarning, zap.NewNop())

	logger.Record(AuditEvent{AuditID: "1", Severity: SeverityInfo, Action: ActionAllow})
	logger.Record(AuditEvent{AuditID: "2", Severity: SeverityCritical, Action: ActionBlock})
	logger.Flush()

	if !strings.Contains(buf.String(), `"2"`) {
		t.Fatalf("expected the critical event to be buffered")
	}
	if strings.Contains(buf.String(), `"audit_id":"1"`) {
		t.Fatalf("info event should have been dropped below the warning threshold")
	}
}

func TestAuditLogger_CloseWithoutRunIsSafe(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAuditLogger(&buf, 10, "", zap.NewNop())
	logger.Record(AuditEvent{AuditID: "1", Severity: SeverityInfo, Action: ActionAllow})
	logger.Close()
	if buf.Len() == 0 {
		t.Fatalf("expected Close to flush pending events even when Run was never started")
	}
}

func countLines(t *testing.T, s string) int {
	t.Helper()
	sc := bufio.NewScanner(strings.NewReader(s))
	n := 0
	for sc.Scan() {
		if sc.Text() != "" {
			n++
		}
	}
	return n
}

package commands

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/foxsync/foxsync-go/pkg/log"
)

// writeSampleLog creates an audit file with one event of each kind and
// returns its path.
func writeSampleLog(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "audit.flog")
	fl, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer fl.Close()

	call := log.NewEvent(log.KindCall)
	call.DeviceSN = "60KH12345"
	call.Call = &log.CallEvent{
		Endpoint:       "/op/v0/device/real/query",
		Method:         "POST",
		Errno:          0,
		Duration:       120 * time.Millisecond,
		CallsUsedToday: 3,
		CallsLast24h:   5,
	}
	fl.Log(call)

	commit := log.NewEvent(log.KindCommit)
	commit.DeviceSN = "60KH12345"
	commit.Commit = &log.CommitEvent{
		Unit:    "setting:WorkMode",
		Outcome: "conflict",
		Errno:   44096,
	}
	fl.Log(commit)

	poll := log.NewEvent(log.KindPoll)
	poll.DeviceSN = "60KH12345"
	poll.Poll = &log.PollEvent{OK: true}
	fl.Log(poll)

	return path
}

func TestParseKindFlag(t *testing.T) {
	kinds := map[string]log.Kind{
		"call":   log.KindCall,
		"commit": log.KindCommit,
		"poll":   log.KindPoll,
	}
	for name, want := range kinds {
		got, err := ParseKindFlag(name)
		if err != nil {
			t.Fatalf("ParseKindFlag(%q): %v", name, err)
		}
		if got != want {
			t.Errorf("ParseKindFlag(%q) = %v, want %v", name, got, want)
		}
	}
	if _, err := ParseKindFlag("bogus"); err == nil {
		t.Error("ParseKindFlag(bogus) should return error")
	}
}

func TestView(t *testing.T) {
	path := writeSampleLog(t)

	var buf bytes.Buffer
	if err := View(&buf, path, log.Filter{}); err != nil {
		t.Fatalf("View: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"CALL", "COMMIT", "POLL",
		"/op/v0/device/real/query",
		"setting:WorkMode",
		"errno 44096",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("view output missing %q:\n%s", want, out)
		}
	}
}

func TestView_FailuresOnly(t *testing.T) {
	path := writeSampleLog(t)

	var buf bytes.Buffer
	if err := View(&buf, path, log.Filter{FailuresOnly: true}); err != nil {
		t.Fatalf("View: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "COMMIT") {
		t.Errorf("failure view should keep the rejected commit:\n%s", out)
	}
	if strings.Contains(out, "CALL") || strings.Contains(out, "POLL") {
		t.Errorf("failure view should drop successful events:\n%s", out)
	}
}

func TestExportJSONL(t *testing.T) {
	path := writeSampleLog(t)

	var buf bytes.Buffer
	if err := ExportJSONL(&buf, path, log.Filter{}); err != nil {
		t.Fatalf("ExportJSONL: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"kind":"CALL"`) {
		t.Errorf("first line should be the call event: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"outcome":"conflict"`) {
		t.Errorf("second line should carry the commit outcome: %s", lines[1])
	}
}

func TestExportCSV(t *testing.T) {
	path := writeSampleLog(t)

	var buf bytes.Buffer
	if err := ExportCSV(&buf, path, log.Filter{}); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading CSV: %v", err)
	}
	if len(records) != 4 { // header + 3 events
		t.Fatalf("got %d records, want 4", len(records))
	}
	if records[0][0] != "timestamp" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][3] != "/op/v0/device/real/query" {
		t.Errorf("call row endpoint = %q", records[1][3])
	}
	if records[2][6] != "setting:WorkMode" || records[2][7] != "conflict" {
		t.Errorf("commit row = %v", records[2])
	}
	if records[3][8] != "true" {
		t.Errorf("poll row = %v", records[3])
	}
}

func TestFilterFile(t *testing.T) {
	path := writeSampleLog(t)
	out := filepath.Join(t.TempDir(), "filtered.flog")

	kind := log.KindCommit
	n, err := FilterFile(path, out, log.Filter{Kind: &kind})
	if err != nil {
		t.Fatalf("FilterFile: %v", err)
	}
	if n != 1 {
		t.Fatalf("wrote %d events, want 1", n)
	}

	// The output must be readable again.
	r, err := log.NewReader(out)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()
	event, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if event.Kind != log.KindCommit || event.Commit == nil {
		t.Errorf("filtered event = %+v", event)
	}
}

func TestStats(t *testing.T) {
	path := writeSampleLog(t)

	var buf bytes.Buffer
	if err := Stats(&buf, path, log.Filter{}); err != nil {
		t.Fatalf("Stats: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Events:    3",
		"1 calls, 1 commits, 1 polls",
		"/op/v0/device/real/query",
		"conflict",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}
}

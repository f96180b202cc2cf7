package log

import (
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	event := NewEvent(KindCall)
	event.DeviceSN = "SN123"
	event.Call = &CallEvent{
		Endpoint:       "/op/v1/device/scheduler/enable",
		Method:         "POST",
		Errno:          44096,
		Message:        "Unsupported function",
		Duration:       220 * time.Millisecond,
		CallsUsedToday: 17,
		CallsLast24h:   42,
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}

	if decoded.ID != event.ID {
		t.Errorf("ID = %q, want %q", decoded.ID, event.ID)
	}
	if decoded.Kind != KindCall {
		t.Errorf("Kind = %v, want KindCall", decoded.Kind)
	}
	if decoded.Call == nil || decoded.Call.Errno != 44096 {
		t.Errorf("Call = %+v, want errno 44096", decoded.Call)
	}
	if decoded.Call.Duration != event.Call.Duration {
		t.Errorf("Duration = %v, want %v", decoded.Call.Duration, event.Call.Duration)
	}
}

func TestNewEventUniqueIDs(t *testing.T) {
	a := NewEvent(KindPoll)
	b := NewEvent(KindPoll)
	if a.ID == b.ID {
		t.Error("NewEvent returned duplicate IDs")
	}
	if a.ID == "" {
		t.Error("NewEvent returned empty ID")
	}
}

func TestFileLoggerAndReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.fslog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	ok := NewEvent(KindCall)
	ok.DeviceSN = "SN1"
	ok.Call = &CallEvent{Endpoint: "/op/v1/device/real/query", Method: "POST", Errno: 0}

	failed := NewEvent(KindCall)
	failed.DeviceSN = "SN1"
	failed.Call = &CallEvent{Endpoint: "/op/v0/device/setting/set", Method: "POST", Errno: 44096}

	poll := NewEvent(KindPoll)
	poll.DeviceSN = "SN2"
	poll.Poll = &PollEvent{OK: true}

	logger.Log(ok)
	logger.Log(failed)
	logger.Log(poll)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Logging after close is a no-op, not a panic.
	logger.Log(ok)

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer reader.Close()

	count := 0
	for {
		_, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		count++
	}
	if count != 3 {
		t.Errorf("read %d events, want 3", count)
	}
}

func TestFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.fslog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		e := NewEvent(KindCall)
		e.DeviceSN = "SN1"
		errno := 0
		if i == 2 {
			errno = 40402
		}
		e.Call = &CallEvent{Endpoint: "/op/v1/device/real/query", Method: "POST", Errno: errno}
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reader, err := NewFilteredReader(path, Filter{FailuresOnly: true})
	if err != nil {
		t.Fatalf("NewFilteredReader() error = %v", err)
	}
	defer reader.Close()

	event, err := reader.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if event.Call.Errno != 40402 {
		t.Errorf("Errno = %d, want 40402", event.Call.Errno)
	}
	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("Next() error = %v, want io.EOF", err)
	}
}

func TestMultiLogger(t *testing.T) {
	var mu sync.Mutex
	var got []Event

	capture := loggerFunc(func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	multi := NewMultiLogger(capture, NoopLogger{}, capture)
	multi.Log(NewEvent(KindCommit))

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Errorf("captured %d events, want 2", len(got))
	}
}

// loggerFunc adapts a function to the Logger interface.
type loggerFunc func(Event)

func (f loggerFunc) Log(e Event) { f(e) }

// Package commands implements the foxsync-log CLI commands.
package commands

import (
	"fmt"
	"io"

	"github.com/foxsync/foxsync-go/pkg/log"
)

// ParseKindFlag maps a -kind flag value to an event kind.
func ParseKindFlag(s string) (log.Kind, error) {
	switch s {
	case "call":
		return log.KindCall, nil
	case "commit":
		return log.KindCommit, nil
	case "poll":
		return log.KindPoll, nil
	default:
		return 0, fmt.Errorf("unknown kind %q (want call, commit, or poll)", s)
	}
}

// View writes matching events from the audit file to w in a
// human-readable format.
func View(w io.Writer, path string, filter log.Filter) error {
	r, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return err
	}
	defer r.Close()

	for {
		event, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		formatEvent(w, event)
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [device] KIND
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z")
	if event.DeviceSN != "" {
		fmt.Fprintf(w, "%s [%s] %s\n", ts, event.DeviceSN, event.Kind)
	} else {
		fmt.Fprintf(w, "%s %s\n", ts, event.Kind)
	}

	switch {
	case event.Call != nil:
		formatCallDetails(w, event.Call)
	case event.Commit != nil:
		formatCommitDetails(w, event.Commit)
	case event.Poll != nil:
		formatPollDetails(w, event.Poll)
	}

	fmt.Fprintln(w) // Blank line between events
}

func formatCallDetails(w io.Writer, call *log.CallEvent) {
	fmt.Fprintf(w, "  Endpoint: %s %s\n", call.Method, call.Endpoint)
	if call.Errno == 0 {
		fmt.Fprintf(w, "  Result:   ok\n")
	} else {
		fmt.Fprintf(w, "  Result:   errno %d", call.Errno)
		if call.Message != "" {
			fmt.Fprintf(w, " (%s)", call.Message)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "  Duration: %s\n", call.Duration)
	fmt.Fprintf(w, "  Budget:   %d today, %d last 24h\n", call.CallsUsedToday, call.CallsLast24h)
}

func formatCommitDetails(w io.Writer, commit *log.CommitEvent) {
	fmt.Fprintf(w, "  Unit:     %s\n", commit.Unit)
	fmt.Fprintf(w, "  Outcome:  %s", commit.Outcome)
	if commit.Errno != 0 {
		fmt.Fprintf(w, " (errno %d)", commit.Errno)
	}
	fmt.Fprintln(w)
}

func formatPollDetails(w io.Writer, poll *log.PollEvent) {
	if poll.OK {
		fmt.Fprintf(w, "  Result:   ok\n")
		return
	}
	fmt.Fprintf(w, "  Result:   failed (%d consecutive)\n", poll.ConsecutiveFailures)
	if poll.Message != "" {
		fmt.Fprintf(w, "  Reason:   %s\n", poll.Message)
	}
	if poll.Degraded {
		fmt.Fprintf(w, "  Degraded: true\n")
	}
}

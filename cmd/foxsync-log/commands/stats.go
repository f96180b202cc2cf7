package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/foxsync/foxsync-go/pkg/log"
)

type endpointStats struct {
	calls    int
	failures int
	total    time.Duration
}

// Stats reads the audit file and writes summary statistics to w.
func Stats(w io.Writer, path string, filter log.Filter) error {
	r, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return err
	}
	defer r.Close()

	var (
		total     int
		byKind    = map[log.Kind]int{}
		endpoints = map[string]*endpointStats{}
		outcomes  = map[string]int{}
		pollFail  int
		degraded  int
		first     time.Time
		last      time.Time
	)

	for {
		event, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		total++
		byKind[event.Kind]++
		if first.IsZero() || event.Timestamp.Before(first) {
			first = event.Timestamp
		}
		if event.Timestamp.After(last) {
			last = event.Timestamp
		}

		switch {
		case event.Call != nil:
			es := endpoints[event.Call.Endpoint]
			if es == nil {
				es = &endpointStats{}
				endpoints[event.Call.Endpoint] = es
			}
			es.calls++
			es.total += event.Call.Duration
			if event.Call.Errno != 0 {
				es.failures++
			}
		case event.Commit != nil:
			outcomes[event.Commit.Outcome]++
		case event.Poll != nil:
			if !event.Poll.OK {
				pollFail++
			}
			if event.Poll.Degraded {
				degraded++
			}
		}
	}

	fmt.Fprintf(w, "Events:    %d\n", total)
	if total == 0 {
		return nil
	}
	fmt.Fprintf(w, "Timespan:  %s to %s\n",
		first.UTC().Format("2006-01-02T15:04:05Z"),
		last.UTC().Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(w, "Kinds:     %d calls, %d commits, %d polls\n",
		byKind[log.KindCall], byKind[log.KindCommit], byKind[log.KindPoll])

	if len(endpoints) > 0 {
		fmt.Fprintln(w, "\nCalls by endpoint:")
		names := make([]string, 0, len(endpoints))
		for name := range endpoints {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			es := endpoints[name]
			avg := es.total / time.Duration(es.calls)
			fmt.Fprintf(w, "  %-44s %4d calls, %2d failed, avg %s\n",
				name, es.calls, es.failures, avg.Round(time.Millisecond))
		}
	}

	if len(outcomes) > 0 {
		fmt.Fprintln(w, "\nCommit outcomes:")
		names := make([]string, 0, len(outcomes))
		for name := range outcomes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-16s %d\n", name, outcomes[name])
		}
	}

	if byKind[log.KindPoll] > 0 {
		fmt.Fprintf(w, "\nPolls:     %d failed, %d while degraded\n", pollFail, degraded)
	}
	return nil
}

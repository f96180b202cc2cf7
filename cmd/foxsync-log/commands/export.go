package commands

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/foxsync/foxsync-go/pkg/log"
)

// exportRecord is the flattened JSON shape of one audit event.
type exportRecord struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Kind      string `json:"kind"`
	DeviceSN  string `json:"deviceSN,omitempty"`

	Call   *log.CallEvent   `json:"call,omitempty"`
	Commit *log.CommitEvent `json:"commit,omitempty"`
	Poll   *log.PollEvent   `json:"poll,omitempty"`
}

// ExportJSONL writes matching events to w, one JSON object per line.
func ExportJSONL(w io.Writer, path string, filter log.Filter) error {
	r, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return err
	}
	defer r.Close()

	enc := json.NewEncoder(w)
	for {
		event, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		rec := exportRecord{
			ID:        event.ID,
			Timestamp: event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
			Kind:      event.Kind.String(),
			DeviceSN:  event.DeviceSN,
			Call:      event.Call,
			Commit:    event.Commit,
			Poll:      event.Poll,
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
}

// csvHeader is the fixed column set shared by all event kinds. Columns
// that do not apply to a kind are left empty.
var csvHeader = []string{
	"timestamp", "kind", "device",
	"endpoint", "errno", "duration_ms",
	"unit", "outcome",
	"poll_ok", "message",
}

// ExportCSV writes matching events to w as CSV.
func ExportCSV(w io.Writer, path string, filter log.Filter) error {
	r, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return err
	}
	defer r.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for {
		event, err := r.Next()
		if err == io.EOF {
			cw.Flush()
			return cw.Error()
		}
		if err != nil {
			return err
		}
		if err := cw.Write(csvRow(event)); err != nil {
			return err
		}
	}
}

func csvRow(event log.Event) []string {
	row := make([]string, len(csvHeader))
	row[0] = event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z")
	row[1] = event.Kind.String()
	row[2] = event.DeviceSN

	switch {
	case event.Call != nil:
		row[3] = event.Call.Endpoint
		row[4] = strconv.Itoa(event.Call.Errno)
		row[5] = strconv.FormatInt(event.Call.Duration.Milliseconds(), 10)
		row[9] = event.Call.Message
	case event.Commit != nil:
		row[4] = strconv.Itoa(event.Commit.Errno)
		row[6] = event.Commit.Unit
		row[7] = event.Commit.Outcome
	case event.Poll != nil:
		row[8] = strconv.FormatBool(event.Poll.OK)
		row[9] = event.Poll.Message
	}
	return row
}

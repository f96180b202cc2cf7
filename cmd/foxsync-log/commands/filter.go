package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/foxsync/foxsync-go/pkg/log"
)

// FilterFile copies matching events from src to dst, preserving the
// CBOR encoding so the output is readable by foxsync-log again.
// It returns the number of events written.
func FilterFile(src, dst string, filter log.Filter) (int, error) {
	r, err := log.NewFilteredReader(src, filter)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	enc := log.NewEncoder(out)
	count := 0
	for {
		event, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			out.Close()
			return count, err
		}
		if err := enc.Encode(event); err != nil {
			out.Close()
			return count, fmt.Errorf("encoding event %s: %w", event.ID, err)
		}
		count++
	}

	if err := out.Close(); err != nil {
		return count, err
	}
	return count, nil
}

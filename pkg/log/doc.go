// Package log provides the structured audit trail for cloud API usage.
//
// Every outbound call, commit attempt, and poll outcome is recorded as
// an Event. This is separate from operational logging (slog): the audit
// trail is a machine-readable record of how the daily call budget was
// spent, which matters when debugging why an account ran out of quota.
//
// Applications configure auditing by providing a Logger implementation:
//
//	// For development: mirror events to the console via slog
//	cfg.Audit = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to a binary file
//	cfg.Audit, _ = log.NewFileLogger("/var/log/foxsync/audit.flog")
//
//	// Both at once
//	cfg.Audit = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// Files use CBOR encoding with integer keys; the Reader streams them
// back with optional filtering.
package log

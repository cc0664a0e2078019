// Package logging provides structured logging for nchat sessions.
//
// It wraps log/slog to write JSON records to <configDir>/main.log. Records
// carry persistent attributes (session id, protocol, component) so a single
// log can be filtered per backend after the fact.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(logging.Options{
//	    Path:     filepath.Join(configDir, logging.DefaultFileName),
//	    Level:    logging.LevelInfo,
//	    Rotation: logging.DefaultRotationConfig(),
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	tg := logger.WithSession(id).WithProtocol("telegram")
//	tg.Info("started", "chats", 12)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"started","session_id":"...","protocol":"telegram","chats":12}
//
// # Log Rotation
//
// The file is rotated when it would exceed RotationConfig.MaxSizeMB. Backups
// are named main.log.1 (newest) through main.log.N, optionally gzip
// compressed to main.log.1.gz. Compression runs inline during rotation so
// no goroutine outlives the writer.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer.
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWithWriter] with a buffer to
// assert on records.
package logging

// Package logging provides structured logging for reposcan.
//
// Logger wraps Zap with context-first methods. Every entry picks up the
// trace and span ids of the active OpenTelemetry span, the run id of the
// current search pass and the repository being processed:
//
//	ctx = logging.WithRunID(ctx, logging.NewRunID())
//	ctx = logging.WithRepository(ctx, "acme/svc-billing")
//	logger.Warn(ctx, "cache write failed", zap.Error(err))
//
// Output goes to stderr so it never interleaves with the report written to
// stdout. The default level is warn; pass --log-level or set log.level to see
// more.
//
// Access tokens are masked twice: config.Secret never prints its value, and
// the encoder masks sensitive keys and token-shaped strings.
//
// Warnings are sampled after the first hundred per second. Errors are never
// sampled.
package logging

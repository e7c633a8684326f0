// Package log provides structured logging handler construction for use with
// [log/slog].
//
// It supports [FormatJSON] and [FormatLogfmt] output and the usual severity
// levels. Use [NewHandler] to create a handler directly, or use [Config]
// with CLI flag integration via [github.com/spf13/pflag] and shell
// completion support via [github.com/spf13/cobra].
//
// Typical usage creates a [Config], registers flags, then builds a handler
// at startup:
//
//	cfg := log.NewConfig()
//	cfg.RegisterFlags(rootCmd.PersistentFlags())
//
//	handler, err := cfg.NewHandler(os.Stderr)
//	slog.SetDefault(slog.New(handler))
//
// Pipeline code logs through tenant-scoped loggers created with [ForTenant],
// so every record carries the tenant slug. A [Publisher] fans one tenant's
// log stream out to multiple subscribers, for example to mirror a run's logs
// into a per-tenant file:
//
//	pub := log.NewPublisher()
//	w := io.MultiWriter(os.Stderr, pub)
//	handler := log.NewHandler(w, slog.LevelInfo, log.FormatLogfmt)
//	logger := log.ForTenant(slog.New(handler), "t-demo")
package log

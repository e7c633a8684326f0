package log_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.datawiz.dev/etl/log"
)

func TestGetLevel(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input   string
		want    slog.Level
		wantErr error
	}{
		"error":          {input: "error", want: slog.LevelError},
		"warn":           {input: "warn", want: slog.LevelWarn},
		"warning alias":  {input: "warning", want: slog.LevelWarn},
		"info":           {input: "info", want: slog.LevelInfo},
		"debug":          {input: "debug", want: slog.LevelDebug},
		"case folded":    {input: "INFO", want: slog.LevelInfo},
		"unknown":        {input: "trace", wantErr: log.ErrUnknownLogLevel},
		"empty":          {input: "", wantErr: log.ErrUnknownLogLevel},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := log.GetLevel(tc.input)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetFormat(t *testing.T) {
	t.Parallel()

	got, err := log.GetFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, log.FormatJSON, got)

	_, err = log.GetFormat("xml")
	assert.ErrorIs(t, err, log.ErrUnknownLogFormat)
}

func TestNewHandlerFromStringsJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	handler, err := log.NewHandlerFromStrings(&buf, "info", "json")
	require.NoError(t, err)

	logger := slog.New(handler)
	logger.Debug("hidden")
	logger.Info("visible", slog.String("table", "dim_customer"))

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "visible", record["msg"])
	assert.Equal(t, "dim_customer", record["table"])
}

func TestNewHandlerFromStringsRejectsBadInputs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	_, err := log.NewHandlerFromStrings(&buf, "trace", "json")
	assert.ErrorIs(t, err, log.ErrInvalidArgument)

	_, err = log.NewHandlerFromStrings(&buf, "info", "xml")
	assert.ErrorIs(t, err, log.ErrInvalidArgument)
}

func TestForTenantStampsSlug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(log.NewHandler(&buf, slog.LevelInfo, log.FormatLogfmt))
	log.ForTenant(logger, "acme").Info("run started")

	assert.Contains(t, buf.String(), "tenant=acme")
}

func TestConfigRegisterFlags(t *testing.T) {
	t.Parallel()

	cfg := log.NewConfig()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.RegisterFlags(flags)

	require.NoError(t, flags.Parse([]string{"--log-level=debug", "--log-format=json"}))
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "json", cfg.Format)

	var buf bytes.Buffer

	handler, err := cfg.NewHandler(&buf)
	require.NoError(t, err)

	slog.New(handler).Debug("low level detail")
	assert.Contains(t, buf.String(), "low level detail")
}

func TestPublisherFanOut(t *testing.T) {
	t.Parallel()

	pub := log.NewPublisher()

	first := pub.Subscribe()
	second := pub.Subscribe()

	n, err := pub.Write([]byte("line one\n"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	assert.Equal(t, "line one\n", string(<-first.C()))
	assert.Equal(t, "line one\n", string(<-second.C()))
}

func TestPublisherDropsOldestWhenFull(t *testing.T) {
	t.Parallel()

	pub := log.NewPublisher(log.WithBufferSize(2))
	sub := pub.Subscribe()

	for _, line := range []string{"a", "b", "c"} {
		_, err := pub.Write([]byte(line))
		require.NoError(t, err)
	}

	assert.Equal(t, "b", string(<-sub.C()))
	assert.Equal(t, "c", string(<-sub.C()))
}

func TestPublisherClose(t *testing.T) {
	t.Parallel()

	pub := log.NewPublisher()
	sub := pub.Subscribe()

	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())

	_, open := <-sub.C()
	assert.False(t, open)

	// Writes after close are accepted and discarded.
	n, err := pub.Write([]byte("late"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	late := pub.Subscribe()
	_, open = <-late.C()
	assert.False(t, open)
}

func TestPublisherAsHandlerSink(t *testing.T) {
	t.Parallel()

	pub := log.NewPublisher()
	t.Cleanup(func() { pub.Close() })

	sub := pub.Subscribe()
	logger := slog.New(log.NewHandler(pub, slog.LevelInfo, log.FormatLogfmt))
	log.ForTenant(logger, "globex").Info("chunk loaded", slog.Int("rows", 8192))

	line := string(<-sub.C())
	assert.True(t, strings.Contains(line, "tenant=globex"))
	assert.Contains(t, line, "rows=8192")
}

func TestClosedSubscriptionIsCompacted(t *testing.T) {
	t.Parallel()

	pub := log.NewPublisher()
	stale := pub.Subscribe()
	live := pub.Subscribe()

	stale.Close()

	_, err := pub.Write([]byte("x"))
	require.NoError(t, err)

	_, open := <-stale.C()
	assert.False(t, open)
	assert.Equal(t, "x", string(<-live.C()))
}

package load

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"go.datawiz.dev/etl/config"
	"go.datawiz.dev/etl/frame"
)

// Stream load terminal statuses as the database reports them.
const (
	statusSuccess        = "Success"
	statusFail           = "Fail"
	statusPublishTimeout = "Publish Timeout"
	statusLabelExists    = "Label Already Exists"
)

// streamLoadResponse is the JSON body the load endpoint returns.
type streamLoadResponse struct {
	TxnID                int64  `json:"TxnId"`
	Label                string `json:"Label"`
	Status               string `json:"Status"`
	Message              string `json:"Message"`
	NumberTotalRows      int64  `json:"NumberTotalRows"`
	NumberLoadedRows     int64  `json:"NumberLoadedRows"`
	NumberFilteredRows   int64  `json:"NumberFilteredRows"`
	NumberUnselectedRows int64  `json:"NumberUnselectedRows"`
	LoadBytes            int64  `json:"LoadBytes"`
	LoadTimeMs           int64  `json:"LoadTimeMs"`
	ErrorURL             string `json:"ErrorURL"`
}

// LoadSummary aggregates the chunk responses of one table load.
type LoadSummary struct {
	Chunks       int
	Rows         int64
	LoadedRows   int64
	FilteredRows int64
	Bytes        int64
	Elapsed      time.Duration
}

// StreamLoader pushes frames into the destination over the HTTP bulk-load
// endpoint, one chunk per transaction.
type StreamLoader struct {
	client   *http.Client
	baseURL  string
	database string
	user     string
	password string
	slug     string
	cfg      config.StreamLoadConfig
	logger   *slog.Logger
}

// NewStreamLoader builds a loader for the tenant's database.
func NewStreamLoader(tenant *config.TenantContext, logger *slog.Logger) *StreamLoader {
	doc := tenant.Doc

	return &StreamLoader{
		client: &http.Client{
			Timeout: time.Duration(doc.StreamLoad.TimeoutSeconds+30) * time.Second,
			// The frontend answers with a redirect to a backend node,
			// which strips auth headers on the hop. Reinstate them.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("%w: too many redirects", ErrLoadFailed)
				}

				req.Header = via[len(via)-1].Header.Clone()

				return nil
			},
		},
		baseURL:  fmt.Sprintf("http://%s:%d", doc.Database.Host, doc.Database.HTTPPort),
		database: doc.Database.Name,
		user:     doc.Database.User,
		password: tenant.Env("DB_PASSWORD"),
		slug:     tenant.Slug,
		cfg:      doc.StreamLoad,
		logger:   logger,
	}
}

// LoadFrame pushes f into table in chunks. Each chunk carries a
// deterministic label, so a rerun of the same frame on the same day is
// idempotent: the database answers Label Already Exists and the chunk
// counts as done.
func (s *StreamLoader) LoadFrame(ctx context.Context, table string, f *frame.Frame) (*LoadSummary, error) {
	start := time.Now()
	chunks := f.Chunks(s.cfg.ChunkSize)
	summary := &LoadSummary{}
	day := time.Now().UTC().Format("20060102")

	for i, chunk := range chunks {
		label := fmt.Sprintf("%s_%s_%s_%04d", s.slug, table, day, i)

		resp, err := s.loadChunk(ctx, table, f, chunk, label)
		if err != nil {
			return summary, fmt.Errorf("table %s chunk %d/%d: %w", table, i+1, len(chunks), err)
		}

		summary.Chunks++
		summary.Rows += int64(chunk.Rows())
		summary.LoadedRows += resp.NumberLoadedRows
		summary.FilteredRows += resp.NumberFilteredRows
		summary.Bytes += resp.LoadBytes

		if (i+1)%10 == 0 {
			s.logger.InfoContext(ctx, "load progress",
				slog.String("table", table),
				slog.Int("chunk", i+1),
				slog.Int("total", len(chunks)),
				slog.Int64("rows", summary.Rows),
			)
		}
	}

	summary.Elapsed = time.Since(start)

	s.logger.InfoContext(ctx, "table loaded",
		slog.String("table", table),
		slog.Int("chunks", summary.Chunks),
		slog.Int64("rows", summary.Rows),
		slog.Int64("loaded_rows", summary.LoadedRows),
		slog.Int64("filtered_rows", summary.FilteredRows),
		slog.Duration("elapsed", summary.Elapsed),
	)

	return summary, nil
}

// loadChunk serializes and sends one chunk, retrying transport failures and
// server errors with exponential backoff. Rejections the database explains
// (Status Fail) are permanent.
func (s *StreamLoader) loadChunk(ctx context.Context, table string, f *frame.Frame, chunk frame.Chunk, label string) (*streamLoadResponse, error) {
	var buf bytes.Buffer

	err := f.WriteChunkCSV(&buf, chunk)
	if err != nil {
		return nil, fmt.Errorf("serialize chunk: %w", err)
	}

	payload := buf.Bytes()

	var resp *streamLoadResponse

	op := func() error {
		var opErr error

		resp, opErr = s.send(ctx, table, chunk, label, payload)

		return opErr
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	err = backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(s.cfg.MaxAttempts-1)), ctx))
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (s *StreamLoader) send(ctx context.Context, table string, chunk frame.Chunk, label string, payload []byte) (*streamLoadResponse, error) {
	url := fmt.Sprintf("%s/api/%s/%s/_stream_load", s.baseURL, s.database, table)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	req.SetBasicAuth(s.user, s.password)
	req.Header.Set("Expect", "100-continue")
	req.Header.Set("label", label)
	req.Header.Set("format", "csv")
	req.Header.Set("column_separator", `\x01`)
	req.Header.Set("row_delimiter", `\n`)
	// Rejected rows are counted against max_filter_ratio instead of
	// aborting the transaction outright.
	req.Header.Set("strict_mode", "false")
	// Positional binding is the default; naming the columns keeps a load
	// honest even if the table changed between schema fetch and send.
	req.Header.Set("columns", strings.Join(quoteAll(chunk.Columns), ","))
	req.Header.Set("max_filter_ratio", strconv.FormatFloat(s.cfg.MaxFilterRatio, 'f', -1, 64))
	req.Header.Set("timeout", strconv.Itoa(s.cfg.TimeoutSeconds))

	httpResp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrLoadFailed, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http %d: %s", ErrLoadFailed, httpResp.StatusCode, truncate(body))
	}

	var resp streamLoadResponse

	err = json.Unmarshal(body, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrLoadFailed, err)
	}

	switch resp.Status {
	case statusSuccess:
		return &resp, nil
	case statusPublishTimeout:
		s.logger.WarnContext(ctx, "publish timeout, transaction committed",
			slog.String("label", label),
		)

		return &resp, nil
	case statusLabelExists:
		s.logger.WarnContext(ctx, "label already exists, chunk counted as loaded",
			slog.String("label", label),
		)

		return &resp, nil
	case statusFail:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s (errors at %s)",
			ErrLoadFailed, resp.Message, resp.ErrorURL))
	default:
		return nil, fmt.Errorf("%w: unexpected status %q: %s",
			ErrLoadFailed, resp.Status, resp.Message)
	}
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "`" + n + "`"
	}

	return out
}

func truncate(body []byte) string {
	const limit = 512

	if len(body) > limit {
		return string(body[:limit]) + "..."
	}

	return string(body)
}

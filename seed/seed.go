package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/jmoiron/sqlx"

	"go.datawiz.dev/etl/config"
)

// Sentinel errors returned by seed loading.
var (
	// ErrMapping indicates a missing or malformed SEED_MAPPING.yaml.
	ErrMapping = errors.New("seed mapping")
	// ErrSeedFile indicates a seed CSV that cannot be read.
	ErrSeedFile = errors.New("seed file")
	// ErrInsert indicates a rejected seed insert.
	ErrInsert = errors.New("seed insert")
)

// insertBatch caps how many rows one INSERT carries.
const insertBatch = 500

// Entry binds one seed CSV to its destination table.
type Entry struct {
	File     string `yaml:"file"`
	Table    string `yaml:"table"`
	Truncate bool   `yaml:"truncate"`
}

// mappingDoc is the SEED_MAPPING.yaml shape.
type mappingDoc struct {
	Seeds []Entry `yaml:"seeds"`
}

// Loader inserts small reference datasets (seeds) into the tenant's
// warehouse. Seeds go through plain INSERTs; they are tens to thousands of
// rows, not worth a bulk-load transaction.
type Loader struct {
	db     *sqlx.DB
	tenant *config.TenantContext
	logger *slog.Logger
}

// NewLoader returns a seed loader over an open tenant database handle.
func NewLoader(db *sqlx.DB, tenant *config.TenantContext, logger *slog.Logger) *Loader {
	return &Loader{
		db:     db,
		tenant: tenant,
		logger: logger,
	}
}

// LoadAll reads SEED_MAPPING.yaml in the tenant's seeds directory and loads
// every entry in file order. A tenant without a seeds directory is fine.
func (l *Loader) LoadAll(ctx context.Context) error {
	path := filepath.Join(l.tenant.SeedsDir, "SEED_MAPPING.yaml")

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		l.logger.InfoContext(ctx, "no seed mapping, skipping",
			slog.String("tenant", l.tenant.Slug),
		)

		return nil
	}

	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMapping, path, err)
	}

	var doc mappingDoc

	err = yaml.Unmarshal(data, &doc)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMapping, path, err)
	}

	for _, entry := range doc.Seeds {
		err = l.loadOne(ctx, entry)
		if err != nil {
			return err
		}
	}

	return nil
}

// loadOne inserts one seed CSV. The header row names the destination
// columns; empty cells insert as NULL.
func (l *Loader) loadOne(ctx context.Context, entry Entry) error {
	path := filepath.Join(l.tenant.SeedsDir, entry.File)

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSeedFile, path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSeedFile, path, err)
	}

	if entry.Truncate {
		_, err = l.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE `%s`", entry.Table))
		if err != nil {
			return fmt.Errorf("%w: truncate %s: %w", ErrInsert, entry.Table, err)
		}
	}

	batch := make([][]any, 0, insertBatch)
	total := 0

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSeedFile, path, err)
		}

		row := make([]any, len(header))
		for i := range header {
			if i < len(record) && record[i] != "" {
				row[i] = record[i]
			}
		}

		batch = append(batch, row)
		total++

		if len(batch) == insertBatch {
			err = l.insert(ctx, entry.Table, header, batch)
			if err != nil {
				return err
			}

			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		err = l.insert(ctx, entry.Table, header, batch)
		if err != nil {
			return err
		}
	}

	l.logger.InfoContext(ctx, "seeded table",
		slog.String("table", entry.Table),
		slog.Int("rows", total),
	)

	return nil
}

func (l *Loader) insert(ctx context.Context, table string, columns []string, batch [][]any) error {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = "`" + strings.TrimSpace(c) + "`"
	}

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	placeholders := make([]string, len(batch))

	args := make([]any, 0, len(batch)*len(columns))

	for i, row := range batch {
		placeholders[i] = placeholder
		args = append(args, row...)
	}

	stmt := fmt.Sprintf("INSERT INTO `%s` (%s) VALUES %s",
		table, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	_, err := l.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInsert, table, err)
	}

	return nil
}

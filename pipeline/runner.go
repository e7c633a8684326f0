package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"go.datawiz.dev/etl/blob"
	"go.datawiz.dev/etl/config"
	"go.datawiz.dev/etl/constants"
	"go.datawiz.dev/etl/convert"
	"go.datawiz.dev/etl/frame"
	"go.datawiz.dev/etl/load"
	"go.datawiz.dev/etl/log"
	"go.datawiz.dev/etl/seed"
	"go.datawiz.dev/etl/transform"
)

// ErrUnknownJob indicates a job name no entry point matches.
var ErrUnknownJob = errors.New("unknown job")

// StoreFactory builds the object store for a tenant. Injectable so tests
// can run against a directory.
type StoreFactory func(ctx context.Context, tenant *config.TenantContext) (blob.Store, error)

// Connector opens the tenant's warehouse handle. Injectable for tests.
type Connector func(tenant *config.TenantContext) (*sqlx.DB, error)

// Runner drives jobs across tenants: fan-out with a concurrency cap, a
// deadline per tenant, and strict isolation so one tenant's failure never
// touches another's run.
type Runner struct {
	resolver *config.Resolver
	logger   *slog.Logger
	newStore StoreFactory
	connect  Connector
}

// Option configures a [Runner].
type Option func(*Runner)

// WithStoreFactory overrides how tenant object stores are built.
func WithStoreFactory(f StoreFactory) Option {
	return func(r *Runner) { r.newStore = f }
}

// WithConnector overrides how tenant database handles are opened.
func WithConnector(c Connector) Option {
	return func(r *Runner) { r.connect = c }
}

// NewRunner returns a runner over resolver.
func NewRunner(resolver *config.Resolver, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		resolver: resolver,
		logger:   logger,
		newStore: blob.NewStore,
		connect:  load.Connect,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run executes the named job for the given tenants, or for every enabled
// tenant when slugs is empty. Tenants run under the registry's concurrency
// cap and per-tenant deadline. With fail_fast off, a failing tenant is
// recorded and the rest keep running.
func (r *Runner) Run(ctx context.Context, jobName string, slugs []string) (*RunOutcome, error) {
	job, ok := JobByName(jobName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJob, jobName)
	}

	tenants, err := r.selectTenants(slugs)
	if err != nil {
		return nil, err
	}

	global := r.resolver.Global()
	start := time.Now()

	outcome := &RunOutcome{
		Job:     job.Name,
		Tenants: make([]TenantOutcome, len(tenants)),
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(global.MaxConcurrentTenants)

	for i, tenant := range tenants {
		group.Go(func() error {
			tenantCtx, cancel := context.WithTimeout(groupCtx,
				tenant.Timeout(global.TenantTimeoutSeconds))
			defer cancel()

			outcome.Tenants[i] = r.runTenant(tenantCtx, tenant, job)

			if global.FailFast && outcome.Tenants[i].Err != nil {
				return fmt.Errorf("tenant %s: %w", tenant.Slug, outcome.Tenants[i].Err)
			}

			return nil
		})
	}

	err = group.Wait()
	outcome.Elapsed = time.Since(start)

	return outcome, err
}

func (r *Runner) selectTenants(slugs []string) ([]*config.TenantContext, error) {
	if len(slugs) == 0 {
		for _, entry := range r.resolver.ListTenants(false) {
			slugs = append(slugs, entry.TenantSlug)
		}
	}

	tenants := make([]*config.TenantContext, 0, len(slugs))

	var errs error

	for _, slug := range slugs {
		tenant, err := r.resolver.Get(slug)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}

		tenants = append(tenants, tenant)
	}

	if errs != nil {
		return nil, errs
	}

	return tenants, nil
}

// runTenant executes the job for one tenant. Table failures are isolated:
// each is recorded and the remaining tables still run. The tenant-level Err
// is set only for failures before any table starts.
func (r *Runner) runTenant(ctx context.Context, tenant *config.TenantContext, job Job) TenantOutcome {
	start := time.Now()
	logger := log.ForTenant(r.logger, tenant.Slug)
	outcome := TenantOutcome{Slug: tenant.Slug}

	defer func() {
		outcome.Elapsed = time.Since(start)

		logger.InfoContext(ctx, "tenant run finished",
			slog.String("job", job.Name),
			slog.Int("tables", len(outcome.Tables)),
			slog.Int("failed", outcome.FailedTables()),
			slog.Duration("elapsed", outcome.Elapsed),
		)
	}()

	err := tenant.Paths.Ensure()
	if err != nil {
		outcome.Err = err

		return outcome
	}

	db, err := r.connect(tenant)
	if err != nil {
		outcome.Err = err

		return outcome
	}
	defer db.Close()

	if job.SeedsOnly {
		outcome.Err = seed.NewLoader(db, tenant, logger).LoadAll(ctx)

		return outcome
	}

	err = r.resolveConstants(ctx, tenant, db)
	if err != nil {
		outcome.Err = err

		return outcome
	}

	store, err := r.newStore(ctx, tenant)
	if err != nil {
		outcome.Err = err

		return outcome
	}

	deps := tableDeps{
		fetcher:     blob.NewFetcher(store, tenant, logger),
		transformer: transform.New(tenant, logger),
		loader:      load.NewLoader(db, tenant, logger),
	}

	for _, table := range job.Tables(tenant) {
		if ctx.Err() != nil {
			outcome.Err = ctx.Err()

			return outcome
		}

		tableOutcome := r.runTable(ctx, tenant, job, deps, table, logger)
		outcome.Tables = append(outcome.Tables, tableOutcome)

		if tableOutcome.Failed() {
			logger.ErrorContext(ctx, "table failed",
				slog.String("table", table),
				slog.String("stage", string(tableOutcome.Stage)),
				slog.Any("error", tableOutcome.Err),
			)
		}
	}

	if outcome.FailedTables() == 0 {
		cleanupWorkDirs(tenant, job.Mode, logger)
	}

	return outcome
}

type tableDeps struct {
	fetcher     *blob.Fetcher
	transformer *transform.Transformer
	loader      *load.Loader
}

// runTable walks one table through download, convert, transform and load.
func (r *Runner) runTable(ctx context.Context, tenant *config.TenantContext, job Job, deps tableDeps, table string, logger *slog.Logger) TableOutcome {
	start := time.Now()

	outcome := TableOutcome{
		Table: table,
		Stage: StageDownload,
	}

	defer func() {
		outcome.Elapsed = time.Since(start)
	}()

	fetched, err := deps.fetcher.Fetch(ctx, table, tenant.Paths.Source(job.Mode))
	if err != nil {
		outcome.Err = err

		return outcome
	}

	if len(fetched.Files) == 0 {
		logger.InfoContext(ctx, "no new data, table skipped",
			slog.String("table", table),
		)

		outcome.Stage = StageDone
		outcome.Skipped = true

		return outcome
	}

	outcome.Files = len(fetched.Files)
	outcome.Stage = StageConvert

	var frames []*frame.Frame

	for _, file := range fetched.Files {
		bronzePath, err := convert.File(file, tenant.Paths.Raw(job.Mode))
		if err != nil {
			outcome.Err = err

			return outcome
		}

		bronze, err := frame.ReadParquet(bronzePath)
		if err != nil {
			outcome.Err = err

			return outcome
		}

		frames = append(frames, bronze)
	}

	combined, err := frame.Concat(frames...)
	if err != nil {
		outcome.Err = err

		return outcome
	}

	outcome.Stage = StageTransform

	silver, stats, err := deps.transformer.Table(ctx, table, combined)
	if err != nil {
		outcome.Err = err

		return outcome
	}

	outcome.Stats = stats

	err = frame.WriteParquet(
		filepath.Join(tenant.Paths.Cleaned(job.Mode), table+".parquet"), silver)
	if err != nil {
		outcome.Err = err

		return outcome
	}

	outcome.Stage = StageLoad

	outcome.Report, err = deps.loader.LoadTable(ctx, table, silver, job.Strategy)
	if err != nil {
		outcome.Err = err

		return outcome
	}

	outcome.Stage = StageDone

	return outcome
}

// resolveConstants fetches the tenant's business constants and substitutes
// ${NAME} references in declared row filters.
func (r *Runner) resolveConstants(ctx context.Context, tenant *config.TenantContext, db *sqlx.DB) error {
	backend, err := constants.New(tenant, db)
	if err != nil {
		return err
	}

	values, err := backend.Fetch(ctx)
	if err != nil {
		return err
	}

	if len(values) == 0 {
		return nil
	}

	expand := func(s string) string {
		for name, value := range values {
			s = strings.ReplaceAll(s, "${"+name+"}", value)
		}

		return s
	}

	for table, filters := range tenant.Doc.BusinessRules.Filters {
		for i := range filters {
			filters[i].Value = expand(filters[i].Value)

			for j := range filters[i].Values {
				filters[i].Values[j] = expand(filters[i].Values[j])
			}
		}

		tenant.Doc.BusinessRules.Filters[table] = filters
	}

	return nil
}

// cleanupWorkDirs clears downloaded and bronze files after a fully clean
// run. Silver parquet stays behind for audits.
func cleanupWorkDirs(tenant *config.TenantContext, mode config.LoadMode, logger *slog.Logger) {
	for _, dir := range []string{tenant.Paths.Source(mode), tenant.Paths.Raw(mode)} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			err = os.RemoveAll(filepath.Join(dir, entry.Name()))
			if err != nil {
				logger.Warn("cleanup failed",
					slog.String("path", filepath.Join(dir, entry.Name())),
					slog.Any("error", err),
				)
			}
		}
	}
}

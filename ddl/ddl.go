package ddl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"go.datawiz.dev/etl/config"
	"go.datawiz.dev/etl/schema"
)

// ErrApply indicates a DDL statement the database rejected.
var ErrApply = errors.New("apply ddl")

// Applier creates and drops a tenant's destination objects in dependency
// order: tables first, then views, then materialized views, each group by
// its declared ordinal. Drops run the whole sequence in reverse.
type Applier struct {
	db     *sqlx.DB
	tenant *config.TenantContext
	logger *slog.Logger
}

// NewApplier returns an applier over an open tenant database handle.
func NewApplier(db *sqlx.DB, tenant *config.TenantContext, logger *slog.Logger) *Applier {
	return &Applier{
		db:     db,
		tenant: tenant,
		logger: logger,
	}
}

// Apply creates every declared object that does not already exist. The
// declared DDL must carry IF NOT EXISTS for reruns to be harmless; the
// applier does not rewrite statements.
func (a *Applier) Apply(ctx context.Context) error {
	for _, obj := range a.ordered() {
		_, err := a.db.ExecContext(ctx, obj.DDL)
		if err != nil {
			return fmt.Errorf("%w: %s %s: %w", ErrApply, obj.Kind, obj.Name, err)
		}

		a.logger.InfoContext(ctx, "applied ddl",
			slog.String("kind", string(obj.Kind)),
			slog.String("name", obj.Name),
		)
	}

	return nil
}

// Drop removes every declared object, most dependent first.
func (a *Applier) Drop(ctx context.Context) error {
	ordered := a.ordered()

	for i := len(ordered) - 1; i >= 0; i-- {
		obj := ordered[i]

		_, err := a.db.ExecContext(ctx, dropStatement(obj))
		if err != nil {
			return fmt.Errorf("%w: drop %s %s: %w", ErrApply, obj.Kind, obj.Name, err)
		}

		a.logger.InfoContext(ctx, "dropped object",
			slog.String("kind", string(obj.Kind)),
			slog.String("name", obj.Name),
		)
	}

	return nil
}

func (a *Applier) ordered() []schema.Table {
	out := make([]schema.Table, 0,
		len(a.tenant.Tables)+len(a.tenant.Views)+len(a.tenant.MatViews))

	out = append(out, a.tenant.Tables...)
	out = append(out, a.tenant.Views...)
	out = append(out, a.tenant.MatViews...)

	return out
}

func dropStatement(obj schema.Table) string {
	switch obj.Kind {
	case schema.KindMatView:
		return fmt.Sprintf("DROP MATERIALIZED VIEW IF EXISTS `%s`", obj.Name)
	case schema.KindView:
		return fmt.Sprintf("DROP VIEW IF EXISTS `%s`", obj.Name)
	default:
		return fmt.Sprintf("DROP TABLE IF EXISTS `%s`", obj.Name)
	}
}

package constants

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // constants store driver

	"go.datawiz.dev/etl/config"
)

// Sentinel errors returned by constants backends.
var (
	// ErrUnknownBackend indicates a registry entry naming a backend
	// variant that does not exist.
	ErrUnknownBackend = errors.New("unknown constants backend")
	// ErrFetch indicates a backend that could not produce its constants.
	ErrFetch = errors.New("fetch constants")
)

// Backend produces the tenant's business constants: named scalar values
// (tax rates, fiscal-year starts, branch codes) that transformations and
// seeds may reference.
type Backend interface {
	Fetch(ctx context.Context) (map[string]string, error)
}

// EnvPrefix derives the tenant's constant namespace from its ID: "BC_"
// plus the first eight hex characters, lowercase as UUIDs render. The
// derivation must stay stable; operators write keys against it by hand.
// Collisions would need two tenant UUIDs sharing a 32-bit prefix, which
// the registry's uniqueness check makes survivable anyway.
func EnvPrefix(tenantID string) string {
	hex := strings.ReplaceAll(tenantID, "-", "")
	if len(hex) > 8 {
		hex = hex[:8]
	}

	return "BC_" + strings.ToLower(hex) + "_"
}

// New selects the backend the registry declares for the tenant.
//
// The relational variant reads from a central Postgres store; samedb reads
// from a table inside the tenant's own warehouse (db must be the tenant's
// open handle); env reads prefixed keys from the tenant's .env layer.
func New(tenant *config.TenantContext, db *sqlx.DB) (Backend, error) {
	switch tenant.ConstantsBackend {
	case "relational":
		return newRelational(tenant)
	case "samedb":
		return &samedbBackend{db: db}, nil
	case "env", "":
		return &envBackend{tenant: tenant}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, tenant.ConstantsBackend)
	}
}

// relationalBackend reads from the shared Postgres constants store.
type relationalBackend struct {
	db       *sqlx.DB
	tenantID string
}

func newRelational(tenant *config.TenantContext) (*relationalBackend, error) {
	key := EnvPrefix(tenant.ID) + "PG_URI"

	dsn := tenant.Env(key)
	if dsn == "" {
		return nil, fmt.Errorf("%w: %s not set for tenant %s",
			ErrFetch, key, tenant.Slug)
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	return &relationalBackend{
		db:       db,
		tenantID: tenant.ID,
	}, nil
}

func (b *relationalBackend) Fetch(ctx context.Context) (map[string]string, error) {
	rows, err := b.db.QueryxContext(ctx,
		"SELECT name, value FROM business_constants WHERE tenant_id = $1", b.tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer rows.Close()

	return scanPairs(rows)
}

// samedbBackend reads from a business_constants table inside the tenant's
// own warehouse.
type samedbBackend struct {
	db *sqlx.DB
}

func (b *samedbBackend) Fetch(ctx context.Context) (map[string]string, error) {
	rows, err := b.db.QueryxContext(ctx, "SELECT name, value FROM business_constants")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer rows.Close()

	return scanPairs(rows)
}

// envBackend reads prefixed keys out of the tenant's .env layer.
type envBackend struct {
	tenant *config.TenantContext
}

func (b *envBackend) Fetch(_ context.Context) (map[string]string, error) {
	prefix := EnvPrefix(b.tenant.ID)
	out := make(map[string]string)

	for _, key := range b.tenant.EnvKeys() {
		if strings.HasPrefix(key, prefix) {
			out[strings.TrimPrefix(key, prefix)] = b.tenant.Env(key)
		}
	}

	return out, nil
}

func scanPairs(rows *sqlx.Rows) (map[string]string, error) {
	out := make(map[string]string)

	for rows.Next() {
		var name, value string

		err := rows.Scan(&name, &value)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}

		out[name] = value
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	return out, nil
}

package directory

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hr-workflow/internal/apperr"
	"hr-workflow/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Postgres reads the HR employee table maintained by the identity side of
// the portal.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a pool and fails fast if the database is unreachable.
func NewPostgres(ctx context.Context, dbURL string) (*Postgres, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("open directory pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping directory: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply directory schema: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// Upsert inserts or replaces an employee row. Used by hrctl seeding.
func (p *Postgres) Upsert(ctx context.Context, e Employee) error {
	var chef any
	if e.ChefID != "" {
		chef = e.ChefID
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO employees(id, role, chef_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET role = EXCLUDED.role, chef_id = EXCLUDED.chef_id, updated_at = now()
	`, e.ID, string(e.Role), chef)
	if err != nil {
		return fmt.Errorf("upsert employee: %w", err)
	}
	return nil
}

func (p *Postgres) RoleOf(ctx context.Context, userID string) (model.Role, error) {
	var role string
	err := p.pool.QueryRow(ctx, `SELECT role FROM employees WHERE id = $1`, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.NotFound("user %s not found", userID)
	}
	if err != nil {
		return "", fmt.Errorf("query role: %w", err)
	}
	return model.Role(role), nil
}

func (p *Postgres) ChefOf(ctx context.Context, userID string) (string, error) {
	var chef *string
	err := p.pool.QueryRow(ctx, `SELECT chef_id FROM employees WHERE id = $1`, userID).Scan(&chef)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.NotFound("user %s not found", userID)
	}
	if err != nil {
		return "", fmt.Errorf("query chef: %w", err)
	}
	if chef == nil {
		return "", nil
	}
	return *chef, nil
}

func (p *Postgres) AllAdminIDs(ctx context.Context) ([]string, error) {
	return p.ids(ctx, `SELECT id FROM employees WHERE role = 'admin' ORDER BY id`)
}

func (p *Postgres) SubordinatesOf(ctx context.Context, chefID string) ([]string, error) {
	return p.ids(ctx, `SELECT id FROM employees WHERE chef_id = $1 ORDER BY id`, chefID)
}

func (p *Postgres) ids(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan employees: %w", err)
	}
	return ids, nil
}

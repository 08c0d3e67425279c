// Copyright 2025 The AP Engine Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqldriver provides a shared database/sql backend for SQLite
// (single-node deployments) and PostgreSQL (multi-node deployments),
// selected by driver name. Process, provider, and job records are
// stored as indexed JSON documents: the indexed columns support the
// list/filter queries the store interfaces require, while the document
// column keeps the full record schema-free so model changes don't need
// a migration.
package sqldriver

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/weaver-engine/ap-engine/internal/apperrors"
	"github.com/weaver-engine/ap-engine/internal/model"
	"github.com/weaver-engine/ap-engine/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ store.Store = (*Store)(nil)

// Config configures a sql-backed Store.
type Config struct {
	// Driver is either "sqlite" or "postgres".
	Driver string
	// DSN is the driver-specific data source name (a file path for
	// sqlite, a connection string for postgres).
	DSN string
}

// Store is a database/sql-backed implementation of the full Store
// interface, portable across SQLite and PostgreSQL.
type Store struct {
	db     *sql.DB
	driver string
}

// New opens the database, applies pending migrations via goose, and
// returns a ready-to-use Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	sqlDriver, gooseDialect, err := resolveDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(sqlDriver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s database: %w", cfg.Driver, err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(gooseDialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{db: db, driver: cfg.Driver}, nil
}

func resolveDriver(driver string) (sqlDriver, gooseDialect string, err error) {
	switch driver {
	case "sqlite":
		return "sqlite", "sqlite3", nil
	case "postgres":
		return "pgx", "postgres", nil
	default:
		return "", "", fmt.Errorf("unsupported store driver %q", driver)
	}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// bind rewrites a query written with "?" placeholders into the
// dialect's native placeholder style ("?" for sqlite, "$1", "$2", ...
// for postgres), so query text stays identical across both drivers.
func (s *Store) bind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) PutProcess(ctx context.Context, p *model.Process) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal process: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := s.bind(`
		INSERT INTO processes (id, version, visibility, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			version = excluded.version,
			visibility = excluded.visibility,
			document = excluded.document,
			updated_at = excluded.updated_at
	`)
	_, err = s.db.ExecContext(ctx, query, p.ID, p.Version, string(p.Visibility), string(doc), now, now)
	if err != nil {
		return fmt.Errorf("put process: %w", err)
	}
	return nil
}

func (s *Store) GetProcess(ctx context.Context, id string) (*model.Process, error) {
	query := s.bind(`SELECT document FROM processes WHERE id = ?`)
	var doc string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, &apperrors.NotFoundError{Resource: "process", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get process: %w", err)
	}
	var p model.Process
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("unmarshal process: %w", err)
	}
	return &p, nil
}

func (s *Store) DeleteProcess(ctx context.Context, id string) error {
	query := s.bind(`DELETE FROM processes WHERE id = ?`)
	_, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete process: %w", err)
	}
	return nil
}

func (s *Store) ListProcesses(ctx context.Context, filter store.ProcessFilter) ([]*model.Process, error) {
	query := `SELECT document FROM processes`
	var args []any
	if filter.Visibility != "" {
		query += ` WHERE visibility = ?`
		args = append(args, string(filter.Visibility))
	}
	query += ` ORDER BY created_at`
	query = applyLimitOffset(query, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	defer rows.Close()

	var out []*model.Process
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan process: %w", err)
		}
		var p model.Process
		if err := json.Unmarshal([]byte(doc), &p); err != nil {
			return nil, fmt.Errorf("unmarshal process: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *Store) PutProvider(ctx context.Context, p *model.Provider) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal provider: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := s.bind(`
		INSERT INTO providers (id, document, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET document = excluded.document
	`)
	_, err = s.db.ExecContext(ctx, query, p.ID, string(doc), now)
	if err != nil {
		return fmt.Errorf("put provider: %w", err)
	}
	return nil
}

func (s *Store) GetProvider(ctx context.Context, id string) (*model.Provider, error) {
	query := s.bind(`SELECT document FROM providers WHERE id = ?`)
	var doc string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, &apperrors.NotFoundError{Resource: "provider", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	var p model.Provider
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("unmarshal provider: %w", err)
	}
	return &p, nil
}

func (s *Store) DeleteProvider(ctx context.Context, id string) error {
	query := s.bind(`DELETE FROM providers WHERE id = ?`)
	_, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete provider: %w", err)
	}
	return nil
}

func (s *Store) ListProviders(ctx context.Context) ([]*model.Provider, error) {
	query := s.bind(`SELECT document FROM providers ORDER BY created_at`)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var out []*model.Provider
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		var p model.Provider
		if err := json.Unmarshal([]byte(doc), &p); err != nil {
			return nil, fmt.Errorf("unmarshal provider: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *Store) CreateJob(ctx context.Context, j *model.Job) error {
	doc, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := s.bind(`
		INSERT INTO jobs (id, process_id, status, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err = s.db.ExecContext(ctx, query, j.ID, j.ProcessID, string(j.Status), string(doc), now, now)
	if err != nil {
		return &apperrors.ConflictError{Message: fmt.Sprintf("create job %s: %v", j.ID, err)}
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	query := s.bind(`SELECT document FROM jobs WHERE id = ?`)
	var doc string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, &apperrors.NotFoundError{Resource: "job", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	var j model.Job
	if err := json.Unmarshal([]byte(doc), &j); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &j, nil
}

func (s *Store) UpdateJob(ctx context.Context, j *model.Job) error {
	doc, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := s.bind(`
		UPDATE jobs SET process_id = ?, status = ?, document = ?, updated_at = ?
		WHERE id = ?
	`)
	res, err := s.db.ExecContext(ctx, query, j.ProcessID, string(j.Status), string(doc), now, j.ID)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n == 0 {
		return &apperrors.NotFoundError{Resource: "job", ID: j.ID}
	}
	return nil
}

func (s *Store) ListJobs(ctx context.Context, filter store.JobFilter) ([]*model.Job, error) {
	query := `SELECT document FROM jobs`
	var conds []string
	var args []any
	if filter.ProcessID != "" {
		conds = append(conds, `process_id = ?`)
		args = append(args, filter.ProcessID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		conds = append(conds, fmt.Sprintf(`status IN (%s)`, strings.Join(placeholders, ", ")))
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		var j model.Job
		if err := json.Unmarshal([]byte(doc), &j); err != nil {
			return nil, fmt.Errorf("unmarshal job: %w", err)
		}
		// Tags are multi-valued and not indexed; filtered in application
		// code after the indexed process/status predicates narrow rows.
		if filter.Tag != "" && !containsTag(j.Tags, filter.Tag) {
			continue
		}
		out = append(out, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if filter.Offset > 0 && filter.Offset < len(out) {
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) DeleteJob(ctx context.Context, id string) error {
	query := s.bind(`DELETE FROM jobs WHERE id = ?`)
	_, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

func applyLimitOffset(query string, limit, offset int) string {
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	if offset > 0 {
		query += fmt.Sprintf(` OFFSET %d`, offset)
	}
	return query
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

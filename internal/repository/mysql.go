package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/mtiwari1/gopherlock/internal/batch"
)

const dbTimeout = 2 * time.Second

// MySQLConfig configures the MySQL backend.
type MySQLConfig struct {
	DSN          string        `mapstructure:"dsn" validate:"required"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	ConnLifetime time.Duration `mapstructure:"conn_lifetime"`
}

const schema = `CREATE TABLE IF NOT EXISTS lock_files (
	id             VARCHAR(36)   NOT NULL PRIMARY KEY,
	batch_id       VARCHAR(36)   NOT NULL,
	name           VARCHAR(512)  NOT NULL,
	relative_path  VARCHAR(1024) NOT NULL,
	size           BIGINT        NOT NULL,
	storage_path   VARCHAR(1024) NOT NULL DEFAULT '',
	status         VARCHAR(16)   NOT NULL,
	error_message  TEXT,
	result_url     TEXT,
	result_path    VARCHAR(1024) NOT NULL DEFAULT '',
	output_name    VARCHAR(512)  NOT NULL DEFAULT '',
	created_at     DATETIME(3)   NOT NULL,
	updated_at     DATETIME(3)   NOT NULL,
	INDEX idx_lock_files_batch (batch_id),
	INDEX idx_lock_files_updated (updated_at)
)`

const selectColumns = "id, batch_id, name, relative_path, size, storage_path, status, error_message, result_url, result_path, output_name, created_at, updated_at"

// MySQLRepo implements Repository using prepared statements and context timeouts.
type MySQLRepo struct {
	db          *sql.DB
	stmtSave    *sql.Stmt
	stmtGet     *sql.Stmt
	stmtByBatch *sql.Stmt
	stmtPurge   *sql.Stmt
}

// OpenMySQL opens the pool described by cfg, creates the table when missing
// and prepares the repository. The returned repo owns the *sql.DB.
func OpenMySQL(ctx context.Context, cfg MySQLConfig) (*MySQLRepo, error) {
	dsn, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	dsn.ParseTime = true

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnLifetime)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	repo, err := NewMySQLRepo(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// Migrate creates the records table when it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("repo migrate: %w", err)
	}
	return nil
}

// NewMySQLRepo prepares all statements up front.
func NewMySQLRepo(db *sql.DB) (*MySQLRepo, error) {
	stmtSave, err := db.Prepare(`INSERT INTO lock_files (` + selectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name), relative_path = VALUES(relative_path), size = VALUES(size),
			storage_path = VALUES(storage_path), status = VALUES(status),
			error_message = VALUES(error_message), result_url = VALUES(result_url),
			result_path = VALUES(result_path), output_name = VALUES(output_name),
			updated_at = VALUES(updated_at)`)
	if err != nil {
		return nil, fmt.Errorf("prepare save: %w", err)
	}

	stmtGet, err := db.Prepare("SELECT " + selectColumns + " FROM lock_files WHERE id = ?")
	if err != nil {
		return nil, fmt.Errorf("prepare get: %w", err)
	}

	stmtByBatch, err := db.Prepare("SELECT " + selectColumns + " FROM lock_files WHERE batch_id = ? ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("prepare listByBatch: %w", err)
	}

	stmtPurge, err := db.Prepare("DELETE FROM lock_files WHERE updated_at < ?")
	if err != nil {
		return nil, fmt.Errorf("prepare deleteOlderThan: %w", err)
	}

	return &MySQLRepo{
		db:          db,
		stmtSave:    stmtSave,
		stmtGet:     stmtGet,
		stmtByBatch: stmtByBatch,
		stmtPurge:   stmtPurge,
	}, nil
}

// Save upserts a record.
func (r *MySQLRepo) Save(ctx context.Context, rec batch.FileRecord) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := r.stmtSave.ExecContext(ctx,
		rec.ID, rec.BatchID, rec.Name, rec.RelativePath, rec.Size, rec.StorageKey,
		string(rec.Status), rec.ErrorMessage, rec.ResultURL, rec.ResultKey, rec.OutputName,
		rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("repo save: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (batch.FileRecord, error) {
	var (
		rec            batch.FileRecord
		status         string
		errMsg, resURL sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.BatchID, &rec.Name, &rec.RelativePath, &rec.Size, &rec.StorageKey,
		&status, &errMsg, &resURL, &rec.ResultKey, &rec.OutputName, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return rec, err
	}
	rec.Status = batch.Status(status)
	rec.ErrorMessage = errMsg.String
	rec.ResultURL = resURL.String
	return rec, nil
}

// Get retrieves a record by id.
func (r *MySQLRepo) Get(ctx context.Context, id string) (*batch.FileRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rec, err := scanRecord(r.stmtGet.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repo get: %w", err)
	}
	return &rec, nil
}

// ListByBatch returns the records of a batch, oldest first.
func (r *MySQLRepo) ListByBatch(ctx context.Context, batchID string) ([]batch.FileRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.stmtByBatch.QueryContext(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("repo listByBatch: %w", err)
	}
	defer rows.Close()

	var out []batch.FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("repo listByBatch scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes records by id.
func (r *MySQLRepo) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := "DELETE FROM lock_files WHERE id IN (?" + strings.Repeat(", ?", len(ids)-1) + ")"
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("repo delete: %w", err)
	}
	return nil
}

// DeleteOlderThan removes records last updated before cutoff.
func (r *MySQLRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	res, err := r.stmtPurge.ExecContext(ctx, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("repo deleteOlderThan: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Ping checks the connection pool.
func (r *MySQLRepo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	return r.db.PingContext(ctx)
}

// Close releases all prepared statements and the pool.
func (r *MySQLRepo) Close() error {
	for _, s := range []*sql.Stmt{r.stmtSave, r.stmtGet, r.stmtByBatch, r.stmtPurge} {
		if s != nil {
			s.Close()
		}
	}
	return r.db.Close()
}

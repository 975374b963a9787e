package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
)

var ddls = []string{
	`CREATE TABLE IF NOT EXISTS weather_reports (
		id TEXT PRIMARY KEY NOT NULL,
		city TEXT NOT NULL,
		temperature INTEGER NOT NULL,
		description TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		requester TEXT NOT NULL,
		indexed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS weather_reports_timestamp ON weather_reports (timestamp DESC, id)`,
	`CREATE INDEX IF NOT EXISTS weather_reports_city ON weather_reports (city)`,
}

const (
	insertReport = `INSERT INTO weather_reports (id, city, temperature, description, timestamp, requester)
		VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`
	getReport   = `SELECT id, city, temperature, description, timestamp, requester FROM weather_reports WHERE id = ?`
	listReports = `SELECT id, city, temperature, description, timestamp, requester FROM weather_reports
		WHERE (? = '' OR city = ?) AND (? = '' OR requester = ?)
		ORDER BY timestamp DESC, id ASC LIMIT ?`
)

// SQLiteStore is a ReportStore backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB

	stmtInsert *sql.Stmt
	stmtGet    *sql.Stmt
	stmtList   *sql.Stmt
}

// NewSQLiteStore opens (creating if needed) the database at path. Use
// ":memory:" for a throwaway database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := openDB(ctx, path, ddls)
	if err != nil {
		return nil, fmt.Errorf("open report db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initStatements(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// openDB opens the SQLite database at path and applies ddls.
func openDB(ctx context.Context, path string, ddls []string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// One connection: SQLite allows a single writer and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)

	for _, ddl := range ddls {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return db, nil
}

func (s *SQLiteStore) initStatements(ctx context.Context) (err error) {
	s.stmtInsert, err = s.db.PrepareContext(ctx, insertReport)
	if err != nil {
		return fmt.Errorf("prepare stmtInsert: %w", err)
	}
	s.stmtGet, err = s.db.PrepareContext(ctx, getReport)
	if err != nil {
		return fmt.Errorf("prepare stmtGet: %w", err)
	}
	s.stmtList, err = s.db.PrepareContext(ctx, listReports)
	if err != nil {
		return fmt.Errorf("prepare stmtList: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id common.Hash) (domain.Report, error) {
	r, err := scanReport(s.stmtGet.QueryRowContext(ctx, id.Hex()))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Report{}, ErrNotFound
	}
	return r, err
}

func (s *SQLiteStore) Insert(ctx context.Context, r domain.Report) (bool, error) {
	res, err := s.stmtInsert.ExecContext(ctx,
		r.ID.Hex(), r.City, int64(r.Temperature), r.Description, r.Timestamp, r.Requester.Hex())
	if err != nil {
		return false, fmt.Errorf("insert report %s: %w", r.ID.Hex(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert report %s: %w", r.ID.Hex(), err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]domain.Report, error) {
	requester := ""
	if opts.Requester != nil {
		requester = opts.Requester.Hex()
	}
	rows, err := s.stmtList.QueryContext(ctx, opts.City, opts.City, requester, requester, opts.limit())
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []domain.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases statements and the database handle.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.stmtInsert, s.stmtGet, s.stmtList} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (domain.Report, error) {
	var (
		id, requester string
		temperature   int64
		r             domain.Report
	)
	if err := row.Scan(&id, &r.City, &temperature, &r.Description, &r.Timestamp, &requester); err != nil {
		return domain.Report{}, err
	}
	r.ID = common.HexToHash(id)
	r.Temperature = domain.Temperature(temperature)
	r.Requester = common.HexToAddress(requester)
	return r, nil
}

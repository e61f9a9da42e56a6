package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLSource reads content from a table with "path" and "body" columns.
type SQLSource struct {
	name  string
	db    *sql.DB
	query string
}

// NewSQLiteSource opens a SQLite content database. A relative dbPath is
// resolved against siteDir; empty means ./website.db.
func NewSQLiteSource(dbPath, table, siteDir string) (*SQLSource, error) {
	if dbPath == "" {
		dbPath = "./website.db"
	}
	dbPath = resolvePath(dbPath, siteDir)

	return openSQL("sqlite", "sqlite", dbPath, table, "?")
}

// NewPostgresSource opens a PostgreSQL content database.
func NewPostgresSource(dsn, table string) (*SQLSource, error) {
	if dsn == "" {
		return nil, &ValidationError{Source: "pg", Field: "dsn", Reason: "database connection required (set content.dsn or DATABASE_URL)"}
	}
	src, err := openSQL("pg", "postgres", dsn, table, "$1")
	if err != nil {
		return nil, err
	}

	src.db.SetMaxOpenConns(5)
	src.db.SetMaxIdleConns(2)
	src.db.SetConnMaxLifetime(5 * time.Minute)
	return src, nil
}

func openSQL(name, driver, dsn, table, placeholder string) (*SQLSource, error) {
	// Table names cannot be bound as parameters.
	if !isValidIdentifier(table) {
		return nil, &ValidationError{Source: name, Field: "table", Reason: fmt.Sprintf("invalid table name %q", table)}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &SourceError{Source: name, Operation: "open", Err: err}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &ConnectionError{Source: name, Address: driver, Err: err}
	}

	return &SQLSource{
		name:  name,
		db:    db,
		query: fmt.Sprintf("SELECT body FROM %s WHERE path = %s", table, placeholder),
	}, nil
}

// Name returns the source identifier
func (s *SQLSource) Name() string {
	return s.name
}

// Fetch returns the body stored for contentPath.
func (s *SQLSource) Fetch(ctx context.Context, contentPath string) (string, error) {
	var body sql.NullString
	err := s.db.QueryRowContext(ctx, s.query, contentPath).Scan(&body)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", &NotFoundError{Source: s.name, Path: contentPath}
	case err != nil:
		return "", NewSourceError(s.name, "query", contentPath, err)
	}
	return body.String, nil
}

// Close releases the database connection
func (s *SQLSource) Close() error {
	return s.db.Close()
}

func isValidIdentifier(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for i, c := range name {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tebita/sidekick/internal/domain"
	"github.com/tebita/sidekick/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identity_id TEXT NOT NULL DEFAULT '',
		name TEXT,
		location TEXT,
		about TEXT,
		hourly_rate TEXT,
		role TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_profiles_identity ON profiles(identity_id, created_at);

	CREATE TABLE IF NOT EXISTS skills (
		profile_id INTEGER NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		name TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS certifications (
		profile_id INTEGER NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		name TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS work_history (
		profile_id INTEGER NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		project_title TEXT NOT NULL,
		rating TEXT NOT NULL,
		feedback TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS experience (
		profile_id INTEGER NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertProfile stores a profile snapshot and its list sections in one
// transaction. No retry on conflict: the caller records the failure and
// moves on.
func (s *SQLiteStore) InsertProfile(ctx context.Context, identityID string, p *domain.Profile) (int64, error) {
	if p == nil {
		return 0, fmt.Errorf("insert profile: nil record")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (identity_id, name, location, about, hourly_rate, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		identityID, nullable(p.Name), nullable(p.Location), nullable(p.About),
		nullable(p.HourlyRate), nullable(p.Role), time.Now().Unix(),
	)
	if err != nil {
		if shared.IsSQLiteConflictError(err) {
			return 0, fmt.Errorf("insert profile: database busy: %w", err)
		}
		return 0, fmt.Errorf("insert profile: %w", err)
	}
	profileID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("profile row id: %w", err)
	}

	for _, name := range p.Skills {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO skills (profile_id, name) VALUES (?, ?)`, profileID, name); err != nil {
			return 0, fmt.Errorf("insert skill: %w", err)
		}
	}
	for _, name := range p.Certifications {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO certifications (profile_id, name) VALUES (?, ?)`, profileID, name); err != nil {
			return 0, fmt.Errorf("insert certification: %w", err)
		}
	}
	for _, w := range p.WorkHistory {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO work_history (profile_id, project_title, rating, feedback) VALUES (?, ?, ?, ?)`,
			profileID, w.Title, w.Rating, w.Feedback); err != nil {
			return 0, fmt.Errorf("insert work history: %w", err)
		}
	}
	for _, e := range p.Experience {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO experience (profile_id, title, description) VALUES (?, ?, ?)`,
			profileID, e.Title, e.Description); err != nil {
			return 0, fmt.Errorf("insert experience: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit profile: %w", err)
	}
	return profileID, nil
}

// FetchProfile returns the most recent stored profile for an identity.
func (s *SQLiteStore) FetchProfile(ctx context.Context, identityID string) (*domain.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, location, about, hourly_rate, role
		FROM profiles WHERE identity_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, identityID)

	var (
		profileID                           int64
		name, location, about, hourly, role sql.NullString
	)
	err := row.Scan(&profileID, &name, &location, &about, &hourly, &role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile row: %w", err)
	}

	p := &domain.Profile{
		Name:       fromNull(name),
		Location:   fromNull(location),
		About:      fromNull(about),
		HourlyRate: fromNull(hourly),
		Role:       fromNull(role),
	}

	p.Skills, err = s.fetchNames(ctx, `SELECT name FROM skills WHERE profile_id = ?`, profileID)
	if err != nil {
		return nil, err
	}
	p.Certifications, err = s.fetchNames(ctx, `SELECT name FROM certifications WHERE profile_id = ?`, profileID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT project_title, rating, feedback FROM work_history WHERE profile_id = ?`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query work history: %w", err)
	}
	defer rows.Close()
	p.WorkHistory = []domain.WorkHistoryEntry{}
	for rows.Next() {
		var w domain.WorkHistoryEntry
		if err := rows.Scan(&w.Title, &w.Rating, &w.Feedback); err != nil {
			return nil, fmt.Errorf("scan work history row: %w", err)
		}
		p.WorkHistory = append(p.WorkHistory, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate work history: %w", err)
	}

	erows, err := s.db.QueryContext(ctx,
		`SELECT title, description FROM experience WHERE profile_id = ?`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query experience: %w", err)
	}
	defer erows.Close()
	p.Experience = []domain.ExperienceEntry{}
	for erows.Next() {
		var e domain.ExperienceEntry
		if err := erows.Scan(&e.Title, &e.Description); err != nil {
			return nil, fmt.Errorf("scan experience row: %w", err)
		}
		p.Experience = append(p.Experience, e)
	}
	if err := erows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experience: %w", err)
	}

	return p, nil
}

func (s *SQLiteStore) fetchNames(ctx context.Context, query string, profileID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("query names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan name row: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate names: %w", err)
	}
	return names, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/justyntemme/exlibris/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique column already holds the value
	ErrConflict = errors.New("record already exists")
)

// Database handles all database operations
type Database struct {
	db *sql.DB
}

// NewDatabase creates and initializes the SQLite database
func NewDatabase(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	d := &Database{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := d.seed(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return d, nil
}

func (d *Database) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		is_admin INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS authors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		full_name TEXT UNIQUE NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		middle_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		sort_name TEXT NOT NULL DEFAULT '',
		match_name TEXT UNIQUE NOT NULL,
		nationality TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS author_aliases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		author_id INTEGER NOT NULL,
		alias TEXT UNIQUE NOT NULL,
		FOREIGN KEY (author_id) REFERENCES authors(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS works (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		sort_title TEXT NOT NULL DEFAULT '',
		author_id INTEGER NOT NULL,
		first_published INTEGER NOT NULL DEFAULT 0,
		work_type TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (author_id) REFERENCES authors(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_kind TEXT NOT NULL,
		owner_id INTEGER NOT NULL,
		kind TEXT NOT NULL DEFAULT 'PHOTO',
		caption TEXT NOT NULL DEFAULT '',
		sort_order INTEGER NOT NULL DEFAULT 0,
		thumb_path TEXT NOT NULL,
		display_path TEXT NOT NULL,
		detail_path TEXT NOT NULL,
		content_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS book_sets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		sort_title TEXT NOT NULL DEFAULT '',
		publisher TEXT NOT NULL DEFAULT '',
		publication_year INTEGER NOT NULL DEFAULT 0,
		isbn10 TEXT NOT NULL DEFAULT '',
		isbn13 TEXT NOT NULL DEFAULT '',
		total_volumes INTEGER NOT NULL DEFAULT 0,
		is_box_set INTEGER NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		cover_url TEXT NOT NULL DEFAULT '',
		cover_image_id INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (cover_image_id) REFERENCES images(id) ON DELETE SET NULL
	);

	CREATE TABLE IF NOT EXISTS volumes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		sort_title TEXT NOT NULL DEFAULT '',
		book_set_id INTEGER,
		volume_number INTEGER NOT NULL DEFAULT 0,
		publisher TEXT NOT NULL DEFAULT '',
		publication_date TEXT NOT NULL DEFAULT '',
		publication_year INTEGER NOT NULL DEFAULT 0,
		isbn10 TEXT NOT NULL DEFAULT '',
		isbn13 TEXT NOT NULL DEFAULT '',
		edition TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		cover_url TEXT NOT NULL DEFAULT '',
		cover_image_id INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (book_set_id) REFERENCES book_sets(id) ON DELETE CASCADE,
		FOREIGN KEY (cover_image_id) REFERENCES images(id) ON DELETE SET NULL
	);

	CREATE TABLE IF NOT EXISTS volume_works (
		volume_id INTEGER NOT NULL,
		work_id INTEGER NOT NULL,
		PRIMARY KEY (volume_id, work_id),
		FOREIGN KEY (volume_id) REFERENCES volumes(id) ON DELETE CASCADE,
		FOREIGN KEY (work_id) REFERENCES works(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_aliases_author ON author_aliases(author_id);
	CREATE INDEX IF NOT EXISTS idx_works_author ON works(author_id);
	CREATE INDEX IF NOT EXISTS idx_works_sort ON works(sort_title);
	CREATE INDEX IF NOT EXISTS idx_volumes_sort ON volumes(sort_title);
	CREATE INDEX IF NOT EXISTS idx_volumes_book_set ON volumes(book_set_id);
	CREATE INDEX IF NOT EXISTS idx_images_owner ON images(owner_kind, owner_id);
	`

	_, err := d.db.Exec(schema)
	return err
}

// seed creates the Unknown Author and Unknown Work sentinels
func (d *Database) seed(ctx context.Context) error {
	unknown, err := d.GetAuthorByName(ctx, models.UnknownAuthorName)
	if errors.Is(err, ErrNotFound) {
		unknown = &models.Author{FullName: models.UnknownAuthorName}
		err = d.CreateAuthor(ctx, unknown)
	}
	if err != nil {
		return fmt.Errorf("failed to seed unknown author: %w", err)
	}

	if _, err := d.UnknownWork(ctx); errors.Is(err, ErrNotFound) {
		w := &models.Work{Title: models.UnknownWorkTitle, AuthorID: unknown.ID}
		if err := d.CreateWork(ctx, w); err != nil {
			return fmt.Errorf("failed to seed unknown work: %w", err)
		}
	} else if err != nil {
		return err
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

// notFound maps sql.ErrNoRows to ErrNotFound
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// conflict maps unique constraint violations to ErrConflict
func conflict(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// User operations

// CreateUser inserts a new user
func (d *Database) CreateUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now()
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, user.IsAdmin, user.CreatedAt,
	)
	return conflict(err)
}

// GetUserByID retrieves a user by ID
func (d *Database) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return d.scanUser(d.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, is_admin, created_at FROM users WHERE id = ?`, id))
}

// GetUserByUsername retrieves a user by username
func (d *Database) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return d.scanUser(d.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, is_admin, created_at FROM users WHERE username = ?`, username))
}

// UserExists checks if a username is taken
func (d *Database) UserExists(ctx context.Context, username string) (bool, error) {
	var count int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE username = ?`, username).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (d *Database) scanUser(row scanner) (*models.User, error) {
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsAdmin, &user.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

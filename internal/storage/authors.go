package storage

import (
	"context"
	"strings"

	"github.com/justyntemme/exlibris/internal/matching"
	"github.com/justyntemme/exlibris/internal/models"
)

const authorColumns = `id, full_name, first_name, middle_name, last_name, sort_name, match_name, nationality, created_at`

// CreateAuthor derives the name fields and inserts the author
func (d *Database) CreateAuthor(ctx context.Context, author *models.Author) error {
	author.FullName = strings.TrimSpace(author.FullName)
	author.Derive()
	if author.CreatedAt.IsZero() {
		author.CreatedAt = now()
	}

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO authors (full_name, first_name, middle_name, last_name, sort_name, match_name, nationality, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		author.FullName, author.FirstName, author.MiddleName, author.LastName,
		author.SortName, author.MatchName, author.Nationality, author.CreatedAt,
	)
	if err != nil {
		return conflict(err)
	}
	author.ID, err = res.LastInsertId()
	return err
}

// GetAuthor retrieves an author by ID
func (d *Database) GetAuthor(ctx context.Context, id int64) (*models.Author, error) {
	return scanAuthor(d.db.QueryRowContext(ctx, `SELECT `+authorColumns+` FROM authors WHERE id = ?`, id))
}

// GetAuthorByName retrieves an author by exact full name
func (d *Database) GetAuthorByName(ctx context.Context, fullName string) (*models.Author, error) {
	return scanAuthor(d.db.QueryRowContext(ctx, `SELECT `+authorColumns+` FROM authors WHERE full_name = ?`, fullName))
}

// ListAuthors returns all authors ordered by sort name
func (d *Database) ListAuthors(ctx context.Context) ([]models.Author, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+authorColumns+` FROM authors ORDER BY sort_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authors []models.Author
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		authors = append(authors, *a)
	}
	return authors, rows.Err()
}

func scanAuthor(row scanner) (*models.Author, error) {
	a := &models.Author{}
	err := row.Scan(&a.ID, &a.FullName, &a.FirstName, &a.MiddleName, &a.LastName,
		&a.SortName, &a.MatchName, &a.Nationality, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// AddAlias records an alternate name for an author
func (d *Database) AddAlias(ctx context.Context, authorID int64, alias string) (*models.AuthorAlias, error) {
	if _, err := d.GetAuthor(ctx, authorID); err != nil {
		return nil, err
	}

	alias = strings.TrimSpace(alias)
	res, err := d.db.ExecContext(ctx, `INSERT INTO author_aliases (author_id, alias) VALUES (?, ?)`, authorID, alias)
	if err != nil {
		return nil, conflict(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.AuthorAlias{ID: id, AuthorID: authorID, Alias: alias}, nil
}

// ListAliases returns the aliases of one author
func (d *Database) ListAliases(ctx context.Context, authorID int64) ([]models.AuthorAlias, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, author_id, alias FROM author_aliases WHERE author_id = ? ORDER BY id`, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aliases []models.AuthorAlias
	for rows.Next() {
		var al models.AuthorAlias
		if err := rows.Scan(&al.ID, &al.AuthorID, &al.Alias); err != nil {
			return nil, err
		}
		aliases = append(aliases, al)
	}
	return aliases, rows.Err()
}

// Catalog reads used by the resolver. Rows come back in id order so the
// first inserted candidate wins ties.

// AuthorAliases returns every alias with its owning author
func (d *Database) AuthorAliases(ctx context.Context) ([]matching.Alias, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT al.alias, a.id, a.full_name, a.match_name
		FROM author_aliases al
		JOIN authors a ON a.id = al.author_id
		ORDER BY al.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aliases []matching.Alias
	for rows.Next() {
		var al matching.Alias
		if err := rows.Scan(&al.Text, &al.Author.ID, &al.Author.Name, &al.Author.Key); err != nil {
			return nil, err
		}
		aliases = append(aliases, al)
	}
	return aliases, rows.Err()
}

// AuthorCandidates returns every author keyed by match name
func (d *Database) AuthorCandidates(ctx context.Context) ([]matching.Candidate, error) {
	return d.candidates(ctx, `SELECT id, full_name, match_name FROM authors ORDER BY id`)
}

// WorkCandidates returns every work keyed by title
func (d *Database) WorkCandidates(ctx context.Context) ([]matching.Candidate, error) {
	return d.candidates(ctx, `SELECT id, title, title FROM works ORDER BY id`)
}

// UnknownAuthor returns the Unknown Author sentinel
func (d *Database) UnknownAuthor(ctx context.Context) (matching.Candidate, error) {
	var c matching.Candidate
	err := d.db.QueryRowContext(ctx, `
		SELECT id, full_name, match_name FROM authors WHERE full_name = ?`, models.UnknownAuthorName,
	).Scan(&c.ID, &c.Name, &c.Key)
	return c, notFound(err)
}

// UnknownWork returns the Unknown Work sentinel
func (d *Database) UnknownWork(ctx context.Context) (matching.Candidate, error) {
	var c matching.Candidate
	err := d.db.QueryRowContext(ctx, `
		SELECT id, title, title FROM works WHERE title = ? ORDER BY id LIMIT 1`, models.UnknownWorkTitle,
	).Scan(&c.ID, &c.Name, &c.Key)
	return c, notFound(err)
}

func (d *Database) candidates(ctx context.Context, query string) ([]matching.Candidate, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []matching.Candidate
	for rows.Next() {
		var c matching.Candidate
		if err := rows.Scan(&c.ID, &c.Name, &c.Key); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Work operations

const workColumns = `id, title, sort_title, author_id, first_published, work_type, notes, created_at`

// CreateWork inserts a work
func (d *Database) CreateWork(ctx context.Context, work *models.Work) error {
	work.Title = strings.TrimSpace(work.Title)
	work.Derive()
	if work.CreatedAt.IsZero() {
		work.CreatedAt = now()
	}

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO works (title, sort_title, author_id, first_published, work_type, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		work.Title, work.SortTitle, work.AuthorID, work.FirstPublished, work.WorkType, work.Notes, work.CreatedAt,
	)
	if err != nil {
		return err
	}
	work.ID, err = res.LastInsertId()
	return err
}

// GetWork retrieves a work by ID
func (d *Database) GetWork(ctx context.Context, id int64) (*models.Work, error) {
	return scanWork(d.db.QueryRowContext(ctx, `SELECT `+workColumns+` FROM works WHERE id = ?`, id))
}

// ListWorks returns all works ordered by sort title
func (d *Database) ListWorks(ctx context.Context) ([]models.Work, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+workColumns+` FROM works ORDER BY sort_title, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var works []models.Work
	for rows.Next() {
		w, err := scanWork(rows)
		if err != nil {
			return nil, err
		}
		works = append(works, *w)
	}
	return works, rows.Err()
}

func scanWork(row scanner) (*models.Work, error) {
	w := &models.Work{}
	err := row.Scan(&w.ID, &w.Title, &w.SortTitle, &w.AuthorID, &w.FirstPublished, &w.WorkType, &w.Notes, &w.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return w, nil
}

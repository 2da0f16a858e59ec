package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/justyntemme/exlibris/internal/models"
)

const volumeColumns = `id, title, sort_title, book_set_id, volume_number, publisher, publication_date,
	publication_year, isbn10, isbn13, edition, description, cover_url, cover_image_id, created_at`

// CreateVolume backfills ISBNs, inserts the volume and links its works
func (d *Database) CreateVolume(ctx context.Context, v *models.Volume) error {
	v.Title = strings.TrimSpace(v.Title)
	v.Derive()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now()
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO volumes (title, sort_title, book_set_id, volume_number, publisher, publication_date,
			publication_year, isbn10, isbn13, edition, description, cover_url, cover_image_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Title, v.SortTitle, nullInt64(v.BookSetID), v.VolumeNumber, v.Publisher, v.PublicationDate,
		v.PublicationYear, v.ISBN10, v.ISBN13, v.Edition, v.Description, v.CoverURL,
		nullInt64(v.CoverImageID), v.CreatedAt,
	)
	if err != nil {
		return err
	}
	if v.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	for _, workID := range v.WorkIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO volume_works (volume_id, work_id) VALUES (?, ?)`, v.ID, workID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetVolume retrieves a volume and its work IDs
func (d *Database) GetVolume(ctx context.Context, id int64) (*models.Volume, error) {
	v, err := scanVolume(d.db.QueryRowContext(ctx, `SELECT `+volumeColumns+` FROM volumes WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, `SELECT work_id FROM volume_works WHERE volume_id = ? ORDER BY work_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var workID int64
		if err := rows.Scan(&workID); err != nil {
			return nil, err
		}
		v.WorkIDs = append(v.WorkIDs, workID)
	}
	return v, rows.Err()
}

// ListVolumes returns all volumes ordered by sort title
func (d *Database) ListVolumes(ctx context.Context) ([]models.Volume, error) {
	return d.queryVolumes(ctx, `SELECT `+volumeColumns+` FROM volumes ORDER BY sort_title, id`)
}

// VolumesMissingCover returns volumes that have a cover URL but no cached
// cover, oldest first. A limit of zero means no limit.
func (d *Database) VolumesMissingCover(ctx context.Context, limit int) ([]models.Volume, error) {
	query := `SELECT ` + volumeColumns + ` FROM volumes
		WHERE cover_image_id IS NULL AND cover_url != ''
		ORDER BY id`
	if limit > 0 {
		query += ` LIMIT ?`
		return d.queryVolumes(ctx, query, limit)
	}
	return d.queryVolumes(ctx, query)
}

func (d *Database) queryVolumes(ctx context.Context, query string, args ...any) ([]models.Volume, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var volumes []models.Volume
	for rows.Next() {
		v, err := scanVolume(rows)
		if err != nil {
			return nil, err
		}
		volumes = append(volumes, *v)
	}
	return volumes, rows.Err()
}

func scanVolume(row scanner) (*models.Volume, error) {
	v := &models.Volume{}
	var bookSetID, coverID sql.NullInt64
	err := row.Scan(&v.ID, &v.Title, &v.SortTitle, &bookSetID, &v.VolumeNumber, &v.Publisher, &v.PublicationDate,
		&v.PublicationYear, &v.ISBN10, &v.ISBN13, &v.Edition, &v.Description, &v.CoverURL, &coverID, &v.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	v.BookSetID = int64Ptr(bookSetID)
	v.CoverImageID = int64Ptr(coverID)
	return v, nil
}

// Book set operations

const bookSetColumns = `id, title, sort_title, publisher, publication_year, isbn10, isbn13,
	total_volumes, is_box_set, description, cover_url, cover_image_id, created_at`

// CreateBookSet backfills ISBNs and inserts the book set
func (d *Database) CreateBookSet(ctx context.Context, b *models.BookSet) error {
	b.Title = strings.TrimSpace(b.Title)
	b.Derive()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now()
	}

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO book_sets (title, sort_title, publisher, publication_year, isbn10, isbn13,
			total_volumes, is_box_set, description, cover_url, cover_image_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Title, b.SortTitle, b.Publisher, b.PublicationYear, b.ISBN10, b.ISBN13,
		b.TotalVolumes, b.IsBoxSet, b.Description, b.CoverURL, nullInt64(b.CoverImageID), b.CreatedAt,
	)
	if err != nil {
		return err
	}
	b.ID, err = res.LastInsertId()
	return err
}

// GetBookSet retrieves a book set by ID
func (d *Database) GetBookSet(ctx context.Context, id int64) (*models.BookSet, error) {
	return scanBookSet(d.db.QueryRowContext(ctx, `SELECT `+bookSetColumns+` FROM book_sets WHERE id = ?`, id))
}

// ListBookSets returns all book sets ordered by title
func (d *Database) ListBookSets(ctx context.Context) ([]models.BookSet, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+bookSetColumns+` FROM book_sets ORDER BY title, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []models.BookSet
	for rows.Next() {
		b, err := scanBookSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, *b)
	}
	return sets, rows.Err()
}

func scanBookSet(row scanner) (*models.BookSet, error) {
	b := &models.BookSet{}
	var coverID sql.NullInt64
	err := row.Scan(&b.ID, &b.Title, &b.SortTitle, &b.Publisher, &b.PublicationYear, &b.ISBN10, &b.ISBN13,
		&b.TotalVolumes, &b.IsBoxSet, &b.Description, &b.CoverURL, &coverID, &b.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	b.CoverImageID = int64Ptr(coverID)
	return b, nil
}

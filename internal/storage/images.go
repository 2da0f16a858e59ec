package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/justyntemme/exlibris/internal/covers"
	"github.com/justyntemme/exlibris/internal/models"
)

// ErrUnknownOwner is returned for an owner kind that cannot carry images
var ErrUnknownOwner = errors.New("unknown image owner")

// ImageStore keeps image rows and their files in step. It implements
// covers.Store.
type ImageStore struct {
	db     *Database
	files  *FileStorage
	logger *log.Logger
}

// NewImageStore creates an image store over the database and file storage
func NewImageStore(db *Database, files *FileStorage, logger *log.Logger) *ImageStore {
	if logger == nil {
		logger = log.Default()
	}
	return &ImageStore{
		db:     db,
		files:  files,
		logger: logger.With("component", "images"),
	}
}

// Files returns the underlying file storage
func (s *ImageStore) Files() *FileStorage {
	return s.files
}

func ownerTable(ownerKind string) (string, error) {
	switch ownerKind {
	case models.OwnerVolume:
		return "volumes", nil
	case models.OwnerBookSet:
		return "book_sets", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOwner, ownerKind)
	}
}

// contentHash computes the SHA256 hash of an image payload
func contentHash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func coverImageID(ctx context.Context, q querier, table string, ownerID int64) (sql.NullInt64, error) {
	var coverID sql.NullInt64
	err := q.QueryRowContext(ctx, `SELECT cover_image_id FROM `+table+` WHERE id = ?`, ownerID).Scan(&coverID)
	return coverID, notFound(err)
}

// HasCover reports whether the owner's cover pointer is set
func (s *ImageStore) HasCover(ctx context.Context, ownerKind string, ownerID int64) (bool, error) {
	table, err := ownerTable(ownerKind)
	if err != nil {
		return false, err
	}
	coverID, err := coverImageID(ctx, s.db.db, table, ownerID)
	if err != nil {
		return false, err
	}
	return coverID.Valid, nil
}

// AttachCover stores the asset files, then creates the image row and sets
// the owner's cover pointer in one transaction. covers.ErrCoverExists is
// returned when the pointer is already set; the files are removed on any
// failure.
func (s *ImageStore) AttachCover(ctx context.Context, ownerKind string, ownerID int64, asset covers.Asset) (*models.Image, error) {
	table, err := ownerTable(ownerKind)
	if err != nil {
		return nil, err
	}

	img, err := s.saveFiles(ownerKind, ownerID, asset)
	if err != nil {
		return nil, err
	}

	if err := s.attachCover(ctx, table, img, contentHash(asset.Detail.Data)); err != nil {
		s.removeFiles(img)
		return nil, err
	}
	return img, nil
}

func (s *ImageStore) attachCover(ctx context.Context, table string, img *models.Image, hash string) error {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	coverID, err := coverImageID(ctx, tx, table, img.OwnerID)
	if err != nil {
		return err
	}
	if coverID.Valid {
		return covers.ErrCoverExists
	}

	if err := insertImage(ctx, tx, img, hash); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE `+table+` SET cover_image_id = ? WHERE id = ? AND cover_image_id IS NULL`, img.ID, img.OwnerID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n != 1 {
		return covers.ErrCoverExists
	}

	return tx.Commit()
}

// AddImages stores uploaded assets for an owner, appending them after the
// current highest sort order. Assets whose content already exists for the
// owner are skipped. When setFirstAsCover is true the first new image
// becomes the owner's cover. Rows are written in one transaction and files
// are removed if it fails.
func (s *ImageStore) AddImages(ctx context.Context, ownerKind string, ownerID int64, assets []covers.Asset, setFirstAsCover bool) ([]models.Image, error) {
	table, err := ownerTable(ownerKind)
	if err != nil {
		return nil, err
	}
	if _, err := coverImageID(ctx, s.db.db, table, ownerID); err != nil {
		return nil, err
	}

	known, err := s.ownerHashes(ctx, ownerKind, ownerID)
	if err != nil {
		return nil, err
	}

	type pending struct {
		img  *models.Image
		hash string
	}
	var batch []pending
	cleanup := func() {
		for _, p := range batch {
			s.removeFiles(p.img)
		}
	}

	for _, asset := range assets {
		hash := contentHash(asset.Detail.Data)
		if known[hash] {
			s.logger.Info("skipping duplicate image", "owner", ownerKind, "id", ownerID, "file", asset.Detail.Name)
			continue
		}
		known[hash] = true

		img, err := s.saveFiles(ownerKind, ownerID, asset)
		if err != nil {
			cleanup()
			return nil, err
		}
		batch = append(batch, pending{img: img, hash: hash})
	}
	if len(batch) == 0 {
		return nil, nil
	}

	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		cleanup()
		return nil, err
	}
	defer tx.Rollback()

	var start int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sort_order), 0) FROM images WHERE owner_kind = ? AND owner_id = ?`,
		ownerKind, ownerID,
	).Scan(&start); err != nil {
		cleanup()
		return nil, err
	}

	created := make([]models.Image, 0, len(batch))
	for i, p := range batch {
		p.img.SortOrder = start + i + 1
		if err := insertImage(ctx, tx, p.img, p.hash); err != nil {
			cleanup()
			return nil, err
		}
		created = append(created, *p.img)
	}

	if setFirstAsCover {
		if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET cover_image_id = ? WHERE id = ?`, created[0].ID, ownerID); err != nil {
			cleanup()
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		cleanup()
		return nil, err
	}

	s.logger.Info("images added", "owner", ownerKind, "id", ownerID, "count", len(created))
	return created, nil
}

func (s *ImageStore) ownerHashes(ctx context.Context, ownerKind string, ownerID int64) (map[string]bool, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT content_hash FROM images WHERE owner_kind = ? AND owner_id = ? AND content_hash != ''`,
		ownerKind, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := make(map[string]bool)
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes[h] = true
	}
	return hashes, rows.Err()
}

// saveFiles writes the three variants under the owner's directory
func (s *ImageStore) saveFiles(ownerKind string, ownerID int64, asset covers.Asset) (*models.Image, error) {
	img := &models.Image{
		OwnerKind: ownerKind,
		OwnerID:   ownerID,
		Kind:      asset.Kind,
		Caption:   asset.Caption,
		SortOrder: asset.SortOrder,
		CreatedAt: now(),
	}
	if img.Kind == "" {
		img.Kind = models.ImageKindPhoto
	}

	dir := ownerKind + "s"
	slots := []struct {
		dst     *string
		variant covers.Variant
	}{
		{&img.ThumbPath, asset.Thumb},
		{&img.DisplayPath, asset.Display},
		{&img.DetailPath, asset.Detail},
	}
	for _, slot := range slots {
		rel, err := s.files.SaveImage(dir, slot.variant.Name, slot.variant.Data)
		if err != nil {
			s.removeFiles(img)
			return nil, fmt.Errorf("failed to save %s: %w", slot.variant.Name, err)
		}
		*slot.dst = rel
	}
	return img, nil
}

func (s *ImageStore) removeFiles(img *models.Image) {
	for _, p := range img.Paths() {
		if p == "" {
			continue
		}
		if err := s.files.Remove(p); err != nil {
			s.logger.Warn("failed to remove image file", "path", p, "err", err)
		}
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertImage(ctx context.Context, tx execer, img *models.Image, hash string) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO images (owner_kind, owner_id, kind, caption, sort_order,
			thumb_path, display_path, detail_path, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		img.OwnerKind, img.OwnerID, img.Kind, img.Caption, img.SortOrder,
		img.ThumbPath, img.DisplayPath, img.DetailPath, hash, img.CreatedAt,
	)
	if err != nil {
		return err
	}
	img.ID, err = res.LastInsertId()
	return err
}

const imageColumns = `id, owner_kind, owner_id, kind, caption, sort_order,
	thumb_path, display_path, detail_path, created_at`

// GetImage retrieves an image by ID
func (s *ImageStore) GetImage(ctx context.Context, id int64) (*models.Image, error) {
	return scanImage(s.db.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE id = ?`, id))
}

// ListImages returns an owner's images in display order
func (s *ImageStore) ListImages(ctx context.Context, ownerKind string, ownerID int64) ([]models.Image, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT `+imageColumns+` FROM images
		WHERE owner_kind = ? AND owner_id = ?
		ORDER BY sort_order, created_at, id`, ownerKind, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []models.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}

// DeleteImage removes the image row, then its three files. A cover pointer
// to the image is cleared by the foreign key.
func (s *ImageStore) DeleteImage(ctx context.Context, id int64) error {
	img, err := s.GetImage(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.db.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id); err != nil {
		return err
	}

	s.removeFiles(img)
	s.logger.Info("image deleted", "image", id, "owner", img.OwnerKind, "owner_id", img.OwnerID)
	return nil
}

// OrphanFiles returns stored files that no image row references
func (s *ImageStore) OrphanFiles(ctx context.Context) ([]string, error) {
	rows, err := s.db.db.QueryContext(ctx, `SELECT thumb_path, display_path, detail_path FROM images`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	referenced := make(map[string]bool)
	for rows.Next() {
		var thumb, display, detail string
		if err := rows.Scan(&thumb, &display, &detail); err != nil {
			return nil, err
		}
		referenced[thumb] = true
		referenced[display] = true
		referenced[detail] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	files, err := s.files.ListImageFiles()
	if err != nil {
		return nil, err
	}

	var orphans []string
	for _, f := range files {
		if !referenced[f] {
			orphans = append(orphans, f)
		}
	}
	return orphans, nil
}

// RemoveFiles deletes the given stored files, returning the first error
// after attempting all of them
func (s *ImageStore) RemoveFiles(paths []string) error {
	var firstErr error
	for _, p := range paths {
		if err := s.files.Remove(p); err != nil {
			s.logger.Warn("failed to remove image file", "path", p, "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func scanImage(row scanner) (*models.Image, error) {
	img := &models.Image{}
	err := row.Scan(&img.ID, &img.OwnerKind, &img.OwnerID, &img.Kind, &img.Caption, &img.SortOrder,
		&img.ThumbPath, &img.DisplayPath, &img.DetailPath, &img.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return img, nil
}

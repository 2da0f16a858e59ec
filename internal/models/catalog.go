package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/justyntemme/exlibris/internal/isbn"
	"github.com/justyntemme/exlibris/internal/matching"
)

// Sentinel records seeded by the schema
const (
	UnknownAuthorName = "Unknown Author"
	UnknownWorkTitle  = "Unknown Work"
)

// User represents an account allowed to modify the catalog
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Author is a person credited with one or more works
type Author struct {
	ID          int64     `json:"id"`
	FullName    string    `json:"full_name"`
	FirstName   string    `json:"first_name,omitempty"`
	MiddleName  string    `json:"middle_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	SortName    string    `json:"sort_name"`
	MatchName   string    `json:"match_name"`
	Nationality string    `json:"nationality,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Derive fills the name parts, sort name and match key from FullName
func (a *Author) Derive() {
	parsed := matching.ParseName(a.FullName)
	a.FirstName = parsed.Given
	a.MiddleName = parsed.Middle
	a.LastName = parsed.Surname
	a.SortName = matching.SortName(a.FullName)
	a.MatchName = matching.NormalizeName(a.FullName)
}

// AuthorAlias is an alternate spelling or pen name for an author
type AuthorAlias struct {
	ID       int64  `json:"id"`
	AuthorID int64  `json:"author_id"`
	Alias    string `json:"alias"`
}

// Work is an abstract creative work, independent of any printed edition
type Work struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	SortTitle      string    `json:"sort_title"`
	AuthorID       int64     `json:"author_id"`
	FirstPublished int       `json:"first_published,omitempty"`
	WorkType       string    `json:"work_type,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Derive fills SortTitle
func (w *Work) Derive() {
	w.SortTitle = SortTitle(w.Title)
}

// BookSet groups volumes sold or published together
type BookSet struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	SortTitle       string    `json:"sort_title"`
	Publisher       string    `json:"publisher,omitempty"`
	PublicationYear int       `json:"publication_year,omitempty"`
	ISBN10          string    `json:"isbn_10,omitempty"`
	ISBN13          string    `json:"isbn_13,omitempty"`
	TotalVolumes    int       `json:"total_volumes,omitempty"`
	IsBoxSet        bool      `json:"is_box_set"`
	Description     string    `json:"description,omitempty"`
	CoverURL        string    `json:"cover_url,omitempty"`
	CoverImageID    *int64    `json:"cover_image_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Derive normalizes the ISBNs, backfills the missing one and fills SortTitle
func (b *BookSet) Derive() {
	b.ISBN10, b.ISBN13 = BackfillISBNs(b.ISBN10, b.ISBN13)
	b.SortTitle = SortTitle(b.Title)
}

// Volume is a physical copy in the collection
type Volume struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	SortTitle       string    `json:"sort_title"`
	BookSetID       *int64    `json:"book_set_id,omitempty"`
	VolumeNumber    int       `json:"volume_number,omitempty"`
	Publisher       string    `json:"publisher,omitempty"`
	PublicationDate string    `json:"publication_date,omitempty"`
	PublicationYear int       `json:"publication_year,omitempty"`
	ISBN10          string    `json:"isbn_10,omitempty"`
	ISBN13          string    `json:"isbn_13,omitempty"`
	Edition         string    `json:"edition,omitempty"`
	Description     string    `json:"description,omitempty"`
	CoverURL        string    `json:"cover_url,omitempty"`
	CoverImageID    *int64    `json:"cover_image_id,omitempty"`
	WorkIDs         []int64   `json:"work_ids,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Derive normalizes the ISBNs, backfills the missing one and fills SortTitle
func (v *Volume) Derive() {
	v.ISBN10, v.ISBN13 = BackfillISBNs(v.ISBN10, v.ISBN13)
	v.SortTitle = SortTitle(v.Title)
}

// Image owner kinds
const (
	OwnerVolume  = "volume"
	OwnerBookSet = "bookset"
)

// Image kinds
const (
	ImageKindCover = "COVER"
	ImageKindPhoto = "PHOTO"
)

// Image is a stored picture of a volume or book set in three sizes.
// Paths are relative to the images directory.
type Image struct {
	ID          int64     `json:"id"`
	OwnerKind   string    `json:"owner_kind"`
	OwnerID     int64     `json:"owner_id"`
	Kind        string    `json:"kind"`
	Caption     string    `json:"caption,omitempty"`
	SortOrder   int       `json:"sort_order"`
	ThumbPath   string    `json:"-"`
	DisplayPath string    `json:"-"`
	DetailPath  string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// Paths returns the stored file of each size
func (i *Image) Paths() []string {
	return []string{i.ThumbPath, i.DisplayPath, i.DetailPath}
}

var leadingArticle = regexp.MustCompile(`(?i)^(the|an|a)\s+`)

// SortTitle lowercases a title and drops a leading article
func SortTitle(title string) string {
	return strings.ToLower(leadingArticle.ReplaceAllString(strings.TrimSpace(title), ""))
}

// BackfillISBNs normalizes both identifiers and fills whichever is empty
func BackfillISBNs(isbn10, isbn13 string) (string, string) {
	if isbn10 != "" {
		isbn10 = isbn.Normalize(isbn10)
	}
	if isbn13 != "" {
		isbn13 = isbn.Normalize(isbn13)
	}
	return isbn.Backfill(isbn10, isbn13)
}

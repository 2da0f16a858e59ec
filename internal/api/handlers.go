package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/justyntemme/exlibris/internal/catalog"
	"github.com/justyntemme/exlibris/internal/covers"
	"github.com/justyntemme/exlibris/internal/isbn"
	"github.com/justyntemme/exlibris/internal/metadata"
	"github.com/justyntemme/exlibris/internal/models"
	"github.com/justyntemme/exlibris/internal/storage"
)

const (
	// maxUploadBytes caps a single uploaded image
	maxUploadBytes = 20 << 20
	// maxUploadFiles caps the images accepted in one request
	maxUploadFiles = 20
	// lookupTimeout bounds a full lookup including rate-limit waits
	lookupTimeout = 30 * time.Second
)

// Handler contains the catalog HTTP handlers
type Handler struct {
	db      *storage.Database
	images  *storage.ImageStore
	catalog *catalog.Service
	covers  catalog.CoverCacher
	logger  *log.Logger
}

// NewHandler creates a new handler instance
func NewHandler(db *storage.Database, images *storage.ImageStore, svc *catalog.Service, cacher catalog.CoverCacher, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		db:      db,
		images:  images,
		catalog: svc,
		covers:  cacher,
		logger:  logger.With("component", "api"),
	}
}

// respondError maps domain errors onto HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "Internal error"
	switch {
	case errors.Is(err, isbn.ErrInvalidIdentifier):
		status, msg = http.StatusBadRequest, "Invalid ISBN"
	case errors.Is(err, storage.ErrUnknownOwner):
		status, msg = http.StatusBadRequest, "Unknown image owner"
	case errors.Is(err, storage.ErrNotFound):
		status, msg = http.StatusNotFound, "Not found"
	case errors.Is(err, metadata.ErrNotFound):
		status, msg = http.StatusNotFound, "No record found for ISBN"
	case errors.Is(err, storage.ErrConflict), errors.Is(err, covers.ErrCoverExists):
		status, msg = http.StatusConflict, "Already exists"
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "Timed out"
	case errors.Is(err, metadata.ErrRateLimited):
		status, msg = http.StatusTooManyRequests, "Rate limited, please try again later"
	case errors.Is(err, metadata.ErrProvider):
		status, msg = http.StatusBadGateway, "Upstream provider failed"
	case errors.Is(err, covers.ErrAssetTooSmall):
		status, msg = http.StatusUnprocessableEntity, "Cover image rejected"
	case errors.Is(err, catalog.ErrIncompleteRecord):
		status, msg = http.StatusUnprocessableEntity, "Provider record has no title or author"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"error": msg, "detail": err.Error()})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

// HealthCheck reports that the server is up
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ConvertISBN returns both forms of an ISBN and whether each check digit is valid
func (h *Handler) ConvertISBN(c *gin.Context) {
	raw := c.Query("isbn")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "isbn is required"})
		return
	}

	isbn10, isbn13, err := catalog.ConvertISBN(raw)
	if err != nil {
		h.respondError(c, err)
		return
	}

	normalized := isbn.Normalize(raw)
	c.JSON(http.StatusOK, gin.H{
		"input":    normalized,
		"isbn_10":  isbn10,
		"isbn_13":  isbn13,
		"valid_10": isbn10 != "" && isbn.Validate10(isbn10),
		"valid_13": isbn.Validate13(isbn13),
		// Conversion rebuilds the target check digit, so only the input's own
		// check digit can be wrong
		"input_valid": (len(normalized) == 10 && isbn.Validate10(normalized)) ||
			(len(normalized) == 13 && isbn.Validate13(normalized)),
	})
}

// LookupISBN fetches a record and resolves its author and work
func (h *Handler) LookupISBN(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), lookupTimeout)
	defer cancel()

	result, err := h.catalog.LookupISBN(ctx, c.Param("isbn"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListAuthors returns all authors
func (h *Handler) ListAuthors(c *gin.Context) {
	authors, err := h.db.ListAuthors(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if authors == nil {
		authors = []models.Author{}
	}
	c.JSON(http.StatusOK, gin.H{"authors": authors, "count": len(authors)})
}

// CreateAuthor adds an author
func (h *Handler) CreateAuthor(c *gin.Context) {
	var req struct {
		FullName    string `json:"full_name" binding:"required"`
		Nationality string `json:"nationality"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.FullName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "full_name is required"})
		return
	}

	author := &models.Author{FullName: req.FullName, Nationality: req.Nationality}
	if err := h.db.CreateAuthor(c.Request.Context(), author); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"author": author})
}

// AddAlias records an alternate name for an author
func (h *Handler) AddAlias(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req struct {
		Alias string `json:"alias" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Alias) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "alias is required"})
		return
	}

	alias, err := h.db.AddAlias(c.Request.Context(), id, req.Alias)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"alias": alias})
}

// ListWorks returns all works
func (h *Handler) ListWorks(c *gin.Context) {
	works, err := h.db.ListWorks(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if works == nil {
		works = []models.Work{}
	}
	c.JSON(http.StatusOK, gin.H{"works": works, "count": len(works)})
}

// CreateWork adds a work
func (h *Handler) CreateWork(c *gin.Context) {
	var req struct {
		Title          string `json:"title" binding:"required"`
		AuthorID       int64  `json:"author_id" binding:"required"`
		FirstPublished int    `json:"first_published"`
		WorkType       string `json:"work_type"`
		Notes          string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and author_id are required"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.db.GetAuthor(ctx, req.AuthorID); err != nil {
		h.respondError(c, err)
		return
	}

	work := &models.Work{
		Title:          req.Title,
		AuthorID:       req.AuthorID,
		FirstPublished: req.FirstPublished,
		WorkType:       req.WorkType,
		Notes:          req.Notes,
	}
	if err := h.db.CreateWork(ctx, work); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"work": work})
}

// ListVolumes returns all volumes
func (h *Handler) ListVolumes(c *gin.Context) {
	volumes, err := h.db.ListVolumes(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if volumes == nil {
		volumes = []models.Volume{}
	}
	c.JSON(http.StatusOK, gin.H{"volumes": volumes, "count": len(volumes)})
}

// GetVolume returns one volume with its images
func (h *Handler) GetVolume(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	vol, err := h.db.GetVolume(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	images, err := h.images.ListImages(ctx, models.OwnerVolume, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if images == nil {
		images = []models.Image{}
	}
	c.JSON(http.StatusOK, gin.H{"volume": vol, "images": images})
}

type volumeRequest struct {
	Title           string  `json:"title" binding:"required"`
	BookSetID       *int64  `json:"book_set_id"`
	VolumeNumber    int     `json:"volume_number"`
	Publisher       string  `json:"publisher"`
	PublicationDate string  `json:"publication_date"`
	PublicationYear int     `json:"publication_year"`
	ISBN10          string  `json:"isbn_10"`
	ISBN13          string  `json:"isbn_13"`
	Edition         string  `json:"edition"`
	Description     string  `json:"description"`
	CoverURL        string  `json:"cover_url"`
	WorkIDs         []int64 `json:"work_ids"`
}

// CreateVolume adds a volume; missing ISBN forms are backfilled
func (h *Handler) CreateVolume(c *gin.Context) {
	var req volumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	vol := &models.Volume{
		Title:           req.Title,
		BookSetID:       req.BookSetID,
		VolumeNumber:    req.VolumeNumber,
		Publisher:       req.Publisher,
		PublicationDate: req.PublicationDate,
		PublicationYear: req.PublicationYear,
		ISBN10:          req.ISBN10,
		ISBN13:          req.ISBN13,
		Edition:         req.Edition,
		Description:     req.Description,
		CoverURL:        req.CoverURL,
		WorkIDs:         req.WorkIDs,
	}
	if vol.PublicationYear == 0 && vol.PublicationDate != "" {
		if d, ok := metadata.ParsePublishedDate(vol.PublicationDate); ok {
			vol.PublicationYear = d.Year()
		}
	}

	if err := h.db.CreateVolume(c.Request.Context(), vol); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"volume": vol})
}

// CacheVolumeCover downloads the volume's cover URL into a cached cover
func (h *Handler) CacheVolumeCover(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	vol, err := h.db.GetVolume(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.cacheCover(c, covers.Target{OwnerKind: models.OwnerVolume, OwnerID: vol.ID, CoverURL: vol.CoverURL})
}

// CacheBookSetCover downloads the book set's cover URL into a cached cover
func (h *Handler) CacheBookSetCover(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	set, err := h.db.GetBookSet(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.cacheCover(c, covers.Target{OwnerKind: models.OwnerBookSet, OwnerID: set.ID, CoverURL: set.CoverURL})
}

func (h *Handler) cacheCover(c *gin.Context, target covers.Target) {
	cached, err := h.covers.CacheCover(c.Request.Context(), target)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cached": cached})
}

// UploadVolumeImages resizes uploaded photos and attaches them to a volume.
// Form fields: files (repeated), caption, set_cover.
func (h *Handler) UploadVolumeImages(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Multipart form required"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files provided"})
		return
	}
	if len(files) > maxUploadFiles {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Too many files"})
		return
	}

	caption := c.PostForm("caption")
	setCover := c.PostForm("set_cover") == "true"

	assets := make([]covers.Asset, 0, len(files))
	for _, fh := range files {
		if fh.Size > maxUploadBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "File too large (max 20MB)", "file": fh.Filename})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload", "file": fh.Filename})
			return
		}
		up, err := covers.ProcessUpload(f)
		f.Close()
		if err != nil {
			h.logger.Warn("rejected upload", "volume", id, "file", fh.Filename, "err", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image", "file": fh.Filename})
			return
		}
		assets = append(assets, up.Asset(caption, 0))
	}

	created, err := h.images.AddImages(c.Request.Context(), models.OwnerVolume, id, assets, setCover)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if created == nil {
		created = []models.Image{}
	}
	c.JSON(http.StatusCreated, gin.H{"images": created, "count": len(created)})
}

// ListBookSets returns all book sets
func (h *Handler) ListBookSets(c *gin.Context) {
	sets, err := h.db.ListBookSets(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if sets == nil {
		sets = []models.BookSet{}
	}
	c.JSON(http.StatusOK, gin.H{"book_sets": sets, "count": len(sets)})
}

// CreateBookSet adds a book set, looking up its cover URL by ISBN when absent
func (h *Handler) CreateBookSet(c *gin.Context) {
	var req struct {
		Title           string `json:"title" binding:"required"`
		Publisher       string `json:"publisher"`
		PublicationYear int    `json:"publication_year"`
		ISBN10          string `json:"isbn_10"`
		ISBN13          string `json:"isbn_13"`
		TotalVolumes    int    `json:"total_volumes"`
		IsBoxSet        bool   `json:"is_box_set"`
		Description     string `json:"description"`
		CoverURL        string `json:"cover_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), lookupTimeout)
	defer cancel()

	set := &models.BookSet{
		Title:           req.Title,
		Publisher:       req.Publisher,
		PublicationYear: req.PublicationYear,
		ISBN10:          req.ISBN10,
		ISBN13:          req.ISBN13,
		TotalVolumes:    req.TotalVolumes,
		IsBoxSet:        req.IsBoxSet,
		Description:     req.Description,
		CoverURL:        req.CoverURL,
	}
	if err := h.catalog.CreateBookSet(ctx, set); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"book_set": set})
}

// ServeImage sends one stored size of an image
func (h *Handler) ServeImage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	img, err := h.images.GetImage(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var rel string
	switch c.Param("size") {
	case "thumb":
		rel = img.ThumbPath
	case "display":
		rel = img.DisplayPath
	case "detail":
		rel = img.DetailPath
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "size must be thumb, display or detail"})
		return
	}

	full, err := h.images.Files().Path(rel)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.File(full)
}

// DeleteImage removes an image and its files
func (h *Handler) DeleteImage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.images.DeleteImage(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

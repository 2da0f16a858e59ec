package covers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/justyntemme/exlibris/internal/metadata"
	"github.com/justyntemme/exlibris/internal/models"
)

var (
	// ErrAssetTooSmall is returned when a downloaded cover is too small to be an image
	ErrAssetTooSmall = errors.New("cover payload too small")
	// ErrCoverExists is returned by a Store when the owner already has a cover
	ErrCoverExists = errors.New("cover already set")
)

const (
	// MinCoverBytes is the smallest payload accepted as a cover image
	MinCoverBytes = 2000
	// maxCoverBytes caps how much of a response is read
	maxCoverBytes = 20 << 20

	cachedCaption = "Stock cover (cached from Google)"
)

// ChromeUA is sent on cover downloads; some image hosts block unknown agents
const ChromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

const acceptImages = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"

var allowedExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// Variant is one encoded size of an image
type Variant struct {
	Name string
	Data []byte
}

// Asset is a set of image variants waiting to be attached to an owner
type Asset struct {
	Kind      string
	Caption   string
	SortOrder int
	Thumb     Variant
	Display   Variant
	Detail    Variant
}

// Target identifies the record a cover is cached for
type Target struct {
	OwnerKind string
	OwnerID   int64
	CoverURL  string
}

// Store persists cover assets. AttachCover must create the image and set the
// owner's cover pointer in one transaction, returning ErrCoverExists when the
// pointer is already set.
type Store interface {
	HasCover(ctx context.Context, ownerKind string, ownerID int64) (bool, error)
	AttachCover(ctx context.Context, ownerKind string, ownerID int64, asset Asset) (*models.Image, error)
}

// Cacher downloads remote cover images into the store
type Cacher struct {
	client *http.Client
	store  Store
	logger *log.Logger
}

// NewCacher creates a Cacher whose downloads give up after timeout
func NewCacher(store Store, timeout time.Duration, logger *log.Logger) *Cacher {
	if logger == nil {
		logger = log.Default()
	}
	return &Cacher{
		client: &http.Client{Timeout: timeout},
		store:  store,
		logger: logger.With("component", "covers"),
	}
}

// SetHTTPClient replaces the download client, e.g. to trust a private CA
func (c *Cacher) SetHTTPClient(client *http.Client) {
	c.client = client
}

// CacheCover downloads t.CoverURL and attaches it as the owner's cover.
// It reports false with a nil error when there is nothing to do: no URL, or
// the owner already has a cover. Download failures are *metadata.ProviderError
// and payloads under MinCoverBytes are ErrAssetTooSmall.
func (c *Cacher) CacheCover(ctx context.Context, t Target) (bool, error) {
	if strings.TrimSpace(t.CoverURL) == "" {
		return false, nil
	}

	has, err := c.store.HasCover(ctx, t.OwnerKind, t.OwnerID)
	if err != nil {
		return false, err
	}
	if has {
		return false, nil
	}

	logger := c.logger.With("owner", t.OwnerKind, "id", t.OwnerID)

	coverURL := forceHTTPS(t.CoverURL)
	data, contentType, err := c.download(ctx, coverURL)
	if err != nil {
		logger.Warn("cover download failed", "url", coverURL, "err", err)
		return false, err
	}
	if len(data) < MinCoverBytes {
		logger.Warn("cover rejected", "url", coverURL, "bytes", len(data))
		return false, fmt.Errorf("%w: %d bytes", ErrAssetTooSmall, len(data))
	}

	ext := GuessExtension(coverURL, contentType)
	base := fmt.Sprintf("%s-%d-cover", filePrefix(t.OwnerKind), t.OwnerID)

	// The same bytes fill every size slot; cached covers are not resized.
	asset := Asset{
		Kind:      models.ImageKindCover,
		Caption:   cachedCaption,
		SortOrder: 0,
		Thumb:     Variant{Name: base + "-thumb" + ext, Data: data},
		Display:   Variant{Name: base + "-display" + ext, Data: data},
		Detail:    Variant{Name: base + "-detail" + ext, Data: data},
	}

	img, err := c.store.AttachCover(ctx, t.OwnerKind, t.OwnerID, asset)
	if errors.Is(err, ErrCoverExists) {
		return false, nil
	}
	if err != nil {
		logger.Error("failed to attach cover", "err", err)
		return false, err
	}

	logger.Info("cover cached", "image", img.ID, "bytes", len(data))
	return true, nil
}

func (c *Cacher) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, "", &metadata.ProviderError{Provider: "cover", Op: "download", Err: err}
	}
	req.Header.Set("User-Agent", ChromeUA)
	req.Header.Set("Accept", acceptImages)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", &metadata.ProviderError{Provider: "cover", Op: "download", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", metadata.StatusError("cover", "download", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverBytes))
	if err != nil {
		return nil, "", &metadata.ProviderError{Provider: "cover", Op: "read", StatusCode: resp.StatusCode, Err: err}
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// GuessExtension picks a file extension from the content type, then the URL
// path, defaulting to .jpg
func GuessExtension(rawURL, contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "png"):
		return ".png"
	case strings.Contains(ct, "webp"):
		return ".webp"
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return ".jpg"
	}

	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); allowedExts[ext] {
			return ext
		}
	}
	return ".jpg"
}

func forceHTTPS(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if strings.HasPrefix(rawURL, "http://") {
		return "https://" + strings.TrimPrefix(rawURL, "http://")
	}
	return rawURL
}

func filePrefix(ownerKind string) string {
	switch ownerKind {
	case models.OwnerVolume:
		return "vol"
	case models.OwnerBookSet:
		return "set"
	default:
		return ownerKind
	}
}

package covers

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	"github.com/justyntemme/exlibris/internal/models"
)

// Target widths for uploaded images. Smaller sources are never upscaled.
const (
	ThumbWidth   = 240
	DisplayWidth = 900
	DetailWidth  = 1800

	// UploadQuality is the lossy WebP quality of every uploaded variant
	UploadQuality = 85
)

// Upload is a user image decoded and re-encoded into the three sizes
type Upload struct {
	BaseName string
	Thumb    Variant
	Display  Variant
	Detail   Variant
}

// Asset wraps the upload for storage as a photo at the given position
func (u *Upload) Asset(caption string, sortOrder int) Asset {
	return Asset{
		Kind:      models.ImageKindPhoto,
		Caption:   caption,
		SortOrder: sortOrder,
		Thumb:     u.Thumb,
		Display:   u.Display,
		Detail:    u.Detail,
	}
}

// ProcessUpload decodes an image, applies its EXIF orientation, flattens any
// transparency onto white and encodes thumb, display and detail WebPs under
// a random 12-hex-character base name.
func ProcessUpload(r io.Reader) (*Upload, error) {
	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	flat := flatten(src)
	base := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	up := &Upload{BaseName: base}
	for _, size := range []struct {
		suffix string
		width  int
		dst    *Variant
	}{
		{"thumb", ThumbWidth, &up.Thumb},
		{"display", DisplayWidth, &up.Display},
		{"detail", DetailWidth, &up.Detail},
	} {
		data, err := encodeWebP(resizeToWidth(flat, size.width))
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", size.suffix, err)
		}
		*size.dst = Variant{Name: fmt.Sprintf("%s_%s.webp", base, size.suffix), Data: data}
	}

	return up, nil
}

func flatten(img image.Image) image.Image {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func resizeToWidth(img image.Image, width int) image.Image {
	if img.Bounds().Dx() <= width {
		return img
	}
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

func encodeWebP(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, webp.Options{Quality: UploadQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

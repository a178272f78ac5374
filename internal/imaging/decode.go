// Package imaging loads images from disk or memory and normalizes them into the
// opaque, upright RGB form the embedding model expects.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/kailas-cloud/imgdetect/internal/domain"
)

// Decoded is a decoded image together with the facts needed to normalize it.
type Decoded struct {
	Image       image.Image
	Format      string
	Orientation Orientation
}

// Load reads and decodes the image at path.
func Load(path string) (Decoded, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Decoded{}, fmt.Errorf("read image %q: %w", path, domain.ErrNotFound)
		}
		return Decoded{}, fmt.Errorf("read image %q: %w: %w", path, domain.ErrImageDecode, err)
	}
	d, err := Decode(data)
	if err != nil {
		return Decoded{}, fmt.Errorf("image %q: %w", path, err)
	}
	return d, nil
}

// Decode decodes an in-memory image and reads its EXIF orientation.
func Decode(data []byte) (Decoded, error) {
	if len(data) == 0 {
		return Decoded{}, fmt.Errorf("empty image data: %w", domain.ErrImageDecode)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Decoded{}, fmt.Errorf("decode: %w: %w", domain.ErrImageDecode, err)
	}
	return Decoded{
		Image:       img,
		Format:      format,
		Orientation: ReadOrientation(data, format),
	}, nil
}

// LoadNormalized loads the image at path and returns it normalized.
func LoadNormalized(path string) (*image.RGBA, error) {
	d, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Normalize(d.Image, d.Orientation), nil
}

// DecodeNormalized decodes data and returns it normalized.
func DecodeNormalized(data []byte) (*image.RGBA, error) {
	d, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Normalize(d.Image, d.Orientation), nil
}

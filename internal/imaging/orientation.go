package imaging

import (
	"bytes"
	"image"
	"strconv"

	"github.com/bep/imagemeta"
)

// Orientation is the EXIF orientation tag value (1..8).
type Orientation int

// EXIF orientations.
const (
	OrientationNormal     Orientation = 1
	OrientationFlipH      Orientation = 2
	OrientationRotate180  Orientation = 3
	OrientationFlipV      Orientation = 4
	OrientationTranspose  Orientation = 5
	OrientationRotate90   Orientation = 6 // 90° clockwise to display upright
	OrientationTransverse Orientation = 7
	OrientationRotate270  Orientation = 8 // 90° counter-clockwise to display upright
)

// IsValid reports whether o is one of the eight EXIF orientations.
func (o Orientation) IsValid() bool {
	return o >= OrientationNormal && o <= OrientationRotate270
}

// metaFormats maps image.Decode format names to imagemeta formats that can carry EXIF.
var metaFormats = map[string]imagemeta.ImageFormat{
	"jpeg": imagemeta.JPEG,
	"png":  imagemeta.PNG,
	"tiff": imagemeta.TIFF,
	"webp": imagemeta.WebP,
}

// ReadOrientation extracts the EXIF orientation from raw image bytes.
// Missing or unreadable metadata yields OrientationNormal.
func ReadOrientation(data []byte, format string) Orientation {
	imageFormat, ok := metaFormats[format]
	if !ok || len(data) == 0 {
		return OrientationNormal
	}

	o := OrientationNormal
	_ = imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: imageFormat,
		Sources:     imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return ti.Tag == "Orientation"
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			if v, ok := orientationValue(ti.Value); ok {
				o = v
			}
			return nil
		},
	})
	return o
}

func orientationValue(v any) (Orientation, bool) {
	var n int
	switch x := v.(type) {
	case uint16:
		n = int(x)
	case uint32:
		n = int(x)
	case uint8:
		n = int(x)
	case int:
		n = x
	case int64:
		n = int(x)
	case string:
		parsed, err := strconv.Atoi(x)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	o := Orientation(n)
	return o, o.IsValid()
}

// ApplyOrientation returns src transformed so that it displays upright.
// The result always has its origin at (0,0).
func ApplyOrientation(src *image.RGBA, o Orientation) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	var dst *image.RGBA
	var mapping func(x, y int) (int, int) // destination -> source, relative coordinates
	switch o {
	case OrientationFlipH:
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
		mapping = func(x, y int) (int, int) { return w - 1 - x, y }
	case OrientationRotate180:
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
		mapping = func(x, y int) (int, int) { return w - 1 - x, h - 1 - y }
	case OrientationFlipV:
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
		mapping = func(x, y int) (int, int) { return x, h - 1 - y }
	case OrientationTranspose:
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
		mapping = func(x, y int) (int, int) { return y, x }
	case OrientationRotate90:
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
		mapping = func(x, y int) (int, int) { return y, h - 1 - x }
	case OrientationTransverse:
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
		mapping = func(x, y int) (int, int) { return w - 1 - y, h - 1 - x }
	case OrientationRotate270:
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
		mapping = func(x, y int) (int, int) { return w - 1 - y, x }
	default:
		if b.Min == (image.Point{}) {
			return src
		}
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
		mapping = func(x, y int) (int, int) { return x, y }
	}

	db := dst.Bounds()
	for y := 0; y < db.Dy(); y++ {
		for x := 0; x < db.Dx(); x++ {
			sx, sy := mapping(x, y)
			si := src.PixOffset(b.Min.X+sx, b.Min.Y+sy)
			di := dst.PixOffset(x, y)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return dst
}

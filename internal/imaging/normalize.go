package imaging

import (
	"crypto/sha256"
	"encoding/binary"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Normalize converts img into an opaque RGB image and applies the orientation.
//
// Palette images with a transparent entry are composited over white; every other
// image keeps its color channels and loses alpha. The output alpha is always 255.
func Normalize(img image.Image, o Orientation) *image.RGBA {
	var rgb *image.RGBA
	if p, ok := img.(*image.Paletted); ok && hasTransparency(p.Palette) {
		rgb = compositeOverWhite(p)
	} else {
		rgb = dropAlpha(img)
	}
	return ApplyOrientation(rgb, o)
}

func hasTransparency(p color.Palette) bool {
	for _, c := range p {
		if _, _, _, a := c.RGBA(); a != 0xffff {
			return true
		}
	}
	return false
}

func compositeOverWhite(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

type opaquer interface {
	Opaque() bool
}

func dropAlpha(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if o, ok := src.(opaquer); ok && o.Opaque() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}

	// Non-premultiplied sources are read directly: going through RGBA() would
	// turn the stored color of fully transparent pixels into black.
	var at func(x, y int) (uint8, uint8, uint8)
	switch s := src.(type) {
	case *image.NRGBA:
		at = func(x, y int) (uint8, uint8, uint8) {
			i := s.PixOffset(x, y)
			return s.Pix[i], s.Pix[i+1], s.Pix[i+2]
		}
	case *image.NRGBA64:
		at = func(x, y int) (uint8, uint8, uint8) {
			i := s.PixOffset(x, y)
			return s.Pix[i], s.Pix[i+2], s.Pix[i+4] // high bytes, big-endian
		}
	case *image.NYCbCrA:
		at = func(x, y int) (uint8, uint8, uint8) {
			yi, ci := s.YOffset(x, y), s.COffset(x, y)
			return color.YCbCrToRGB(s.Y[yi], s.Cb[ci], s.Cr[ci])
		}
	default:
		at = func(x, y int) (uint8, uint8, uint8) {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			return c.R, c.G, c.B
		}
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl := at(b.Min.X+x, b.Min.Y+y)
			i := dst.PixOffset(x, y)
			dst.Pix[i+0] = r
			dst.Pix[i+1] = g
			dst.Pix[i+2] = bl
			dst.Pix[i+3] = 0xff
		}
	}
	return dst
}

// ToRGBA returns img as *image.RGBA anchored at (0,0), copying only when needed.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// PixelDigest hashes the dimensions and pixel buffer of img.
// Two images with identical pixels produce identical digests.
func PixelDigest(img image.Image) [sha256.Size]byte {
	rgba := ToRGBA(img)
	b := rgba.Bounds()

	h := sha256.New()
	var dims [8]byte
	binary.LittleEndian.PutUint32(dims[0:4], uint32(b.Dx())) //nolint:gosec // image sizes fit in uint32
	binary.LittleEndian.PutUint32(dims[4:8], uint32(b.Dy())) //nolint:gosec // image sizes fit in uint32
	h.Write(dims[:])
	for y := 0; y < b.Dy(); y++ {
		i := rgba.PixOffset(0, y)
		h.Write(rgba.Pix[i : i+4*b.Dx()])
	}

	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

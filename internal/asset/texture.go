package asset

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "github.com/lmittmann/ppm"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxTextureSize bounds either dimension; larger images are downscaled.
	MaxTextureSize = 4096
	// MaxSourceSize bounds either dimension of an encoded image. Headers
	// beyond it are rejected before any pixels are decoded.
	MaxSourceSize = 16384
)

var ErrTextureTooLarge = errors.New("texture too large")

// Texture is tightly packed RGBA8, rows top to bottom.
type Texture struct {
	Name   string
	Width  uint32
	Height uint32
	Pixels []byte
}

// LoadTexture decodes any registered image format. An empty path yields
// Checker.
func LoadTexture(path string) (*Texture, error) {
	if path == "" {
		return Checker(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &ResourceLoadError{Path: path, Err: err}
	}
	defer f.Close()

	tex, err := DecodeTexture(f)
	if err != nil {
		return nil, &ResourceLoadError{Path: path, Err: err}
	}
	tex.Name = path
	return tex, nil
}

// DecodeTexture reads the header first and refuses images whose declared
// size exceeds MaxSourceSize.
func DecodeTexture(r io.Reader) (*Texture, error) {
	var header bytes.Buffer
	cfg, format, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("empty %s image", format)
	}
	if cfg.Width > MaxSourceSize || cfg.Height > MaxSourceSize {
		return nil, fmt.Errorf("%w: %s image is %dx%d, limit %d", ErrTextureTooLarge, format, cfg.Width, cfg.Height, MaxSourceSize)
	}

	img, format, err := image.Decode(io.MultiReader(&header, r))
	if err != nil {
		return nil, err
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("empty %s image", format)
	}
	return FromImage(img), nil
}

// FromImage converts img to RGBA8, scaling it down to MaxTextureSize.
func FromImage(img image.Image) *Texture {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > MaxTextureSize || h > MaxTextureSize {
		scale := float64(MaxTextureSize) / float64(max(w, h))
		w = max(1, int(float64(w)*scale))
		h = max(1, int(float64(h)*scale))
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}
	return &Texture{Width: uint32(w), Height: uint32(h), Pixels: dst.Pix}
}

// Checker is the 2x2 fallback texture.
func Checker() *Texture {
	return &Texture{
		Name:   "checker",
		Width:  2,
		Height: 2,
		Pixels: []byte{
			255, 255, 255, 255, 50, 50, 50, 255,
			50, 50, 50, 255, 255, 255, 255, 255,
		},
	}
}

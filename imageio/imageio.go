// Package imageio loads images into texture upload bytes and builds mip
// chains on the host.
//
// Decode understands PNG, JPEG, GIF, BMP and TIFF. Every image is
// converted to 8-bit RGBA, the layout of rhi.PixelByte4 textures.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	// Register decoders with image.Decode.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/gogpu/rhi"
)

// ErrStorage is returned when a texture does not hold RGBA8 texels.
var ErrStorage = errors.New("imageio: texture storage is not BYTE4")

// Decode decodes an image, auto-detecting the format.
func Decode(r io.Reader) (*image.RGBA, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("imageio: decode: %w", err)
	}
	return toRGBA(img), nil
}

// Load decodes the image file at path.
func Load(path string) (*image.RGBA, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("imageio: open file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

// SavePNG writes img to path as PNG.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("imageio: create file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("imageio: encode PNG: %w", err)
	}
	return f.Close()
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Pixels returns the tightly packed RGBA8 texels of img.
func Pixels(img *image.RGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if img.Stride == w*4 {
		return img.Pix[:w*h*4]
	}
	out := make([]byte, 0, w*h*4)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		out = append(out, row[:w*4]...)
	}
	return out
}

// MipChain returns img followed by up to levels-1 successively halved
// copies. levels of zero builds the full chain down to 1x1.
func MipChain(img *image.RGBA, levels uint32) []*image.RGBA {
	w, h := uint32(img.Rect.Dx()), uint32(img.Rect.Dy())
	if w == 0 || h == 0 {
		return nil
	}
	n := rhi.MipLevelCount(rhi.Extent2D(w, h), levels)
	chain := make([]*image.RGBA, 0, n)
	chain = append(chain, img)
	for i := uint32(1); i < n; i++ {
		prev := chain[i-1]
		lw, lh := max(1, w>>i), max(1, h>>i)
		next := image.NewRGBA(image.Rect(0, 0, int(lw), int(lh)))
		draw.CatmullRom.Scale(next, next.Bounds(), prev, prev.Bounds(), draw.Src, nil)
		chain = append(chain, next)
	}
	return chain
}

// UploadCommands returns one upload per chain level, up to the number of
// levels the texture has. Level sizes must match the texture's chain.
func UploadCommands(info rhi.TextureInfo, chain []*image.RGBA, async bool) ([]rhi.Command, error) {
	if info.Storage != rhi.PixelByte4 {
		return nil, fmt.Errorf("imageio: %v: %w", info.Storage, ErrStorage)
	}
	n := min(uint32(len(chain)), info.Levels)
	cmds := make([]rhi.Command, 0, n)
	for level := uint32(0); level < n; level++ {
		img := chain[level]
		want := rhi.Extent2D(max(1, info.Size.Width>>level), max(1, info.Size.Height>>level))
		got := rhi.Extent2D(uint32(img.Rect.Dx()), uint32(img.Rect.Dy()))
		if got != want {
			return nil, fmt.Errorf("imageio: level %d is %dx%d, want %dx%d: %w",
				level, got.Width, got.Height, want.Width, want.Height, rhi.ErrSizeMismatch)
		}
		cmds = append(cmds, rhi.TextureUploadCommand{
			Texture: info.Handle,
			Level:   level,
			Size:    want,
			Storage: rhi.PixelByte4,
			Data:    Pixels(img),
			Async:   async,
		})
	}
	return cmds, nil
}

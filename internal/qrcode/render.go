package qrcode

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	goqr "github.com/skip2/go-qrcode"
)

const (
	// DefaultImageSize is the side of the rendered square in pixels
	DefaultImageSize = 400
	// DefaultQuietZone is the blank margin around the symbol, in modules
	DefaultQuietZone = 2
)

var blackOnWhite = color.Palette{color.White, color.Black}

type renderer struct {
	size      int
	quietZone int
	level     goqr.RecoveryLevel
}

func defaultRenderer() renderer {
	return renderer{
		size:      DefaultImageSize,
		quietZone: DefaultQuietZone,
		level:     goqr.Medium,
	}
}

// render encodes text as a QR symbol and draws it centred on a size×size
// canvas with the configured quiet zone
func (r renderer) render(text string) ([]byte, error) {
	img, err := r.image(text)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: png encode: %v", ErrEncoding, err)
	}

	return buf.Bytes(), nil
}

func (r renderer) image(text string) (*image.Paletted, error) {
	symbol, err := goqr.New(text, r.level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	symbol.DisableBorder = true

	bitmap := symbol.Bitmap()
	modules := len(bitmap) + 2*r.quietZone
	if modules > r.size {
		return nil, fmt.Errorf("%w: %d modules do not fit a %dpx image", ErrEncoding, modules, r.size)
	}

	scale := r.size / modules
	offset := (r.size-scale*modules)/2 + r.quietZone*scale

	img := image.NewPaletted(image.Rect(0, 0, r.size, r.size), blackOnWhite)
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			fillModule(img, offset+x*scale, offset+y*scale, scale)
		}
	}

	return img, nil
}

func fillModule(img *image.Paletted, left, top, scale int) {
	for py := top; py < top+scale; py++ {
		for px := left; px < left+scale; px++ {
			img.SetColorIndex(px, py, 1)
		}
	}
}

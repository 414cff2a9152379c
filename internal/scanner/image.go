package scanner

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/sirupsen/logrus"
)

// DecodeImage finds and decodes a QR code in a PNG or JPEG image
func DecodeImage(r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("%w: decode image: %v", ErrUnreadable, err)
	}
	return DecodeBitmap(img)
}

// DecodeBitmap finds and decodes a QR code in an already decoded image
func DecodeBitmap(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("%w: binarize image: %v", ErrUnreadable, err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := zxqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	return result.GetText(), nil
}

// ImageSource decodes a list of image files in order
type ImageSource struct {
	paths  []string
	pos    int
	logger *logrus.Logger
	open   func(string) ([]byte, error)
}

// NewImageSource creates a source over image files
func NewImageSource(logger *logrus.Logger, paths ...string) *ImageSource {
	if logger == nil {
		logger = logrus.New()
	}
	return &ImageSource{
		paths:  paths,
		logger: logger,
		open:   os.ReadFile,
	}
}

// Next decodes the next image; an image without a readable code yields ErrUnreadable
func (s *ImageSource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.pos >= len(s.paths) {
		return "", io.EOF
	}

	path := s.paths[s.pos]
	s.pos++

	logger := s.logger.WithFields(logrus.Fields{
		"operation": "decode_image",
		"path":      path,
	})

	data, err := s.open(path)
	if err != nil {
		logger.WithError(err).Warn("failed to read image")
		return "", fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}

	text, err := DecodeImage(bytes.NewReader(data))
	if err != nil {
		logger.WithError(err).Debug("no QR code found")
		return "", fmt.Errorf("%s: %w", path, err)
	}

	logger.WithField("length", len(text)).Debug("image decoded")
	return text, nil
}

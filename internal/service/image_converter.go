// Package service provides business logic layer for vidsyncd operations.
package service

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	// Register image format decoders
	_ "image/gif"
	_ "image/png"

	// WebP support from x/image
	_ "golang.org/x/image/webp"
)

// jpegQuality is used for every re-encode. Cover art and avatars are small
// and read once per library scan rather than streamed, so a high setting
// costs little disk space for a real gain in fidelity.
const jpegQuality = 92

// ImageConverter normalizes whatever image format a CDN serves (PNG, WebP,
// GIF, or already-JPEG) into JPEG bytes, so a poster/thumbnail/avatar
// written to the sandbox actually matches its .jpg extension instead of
// just inheriting whatever content-type the response happened to carry.
type ImageConverter struct{}

// NewImageConverter creates a new ImageConverter.
func NewImageConverter() *ImageConverter {
	return &ImageConverter{}
}

// ConvertToJPEG decodes data (PNG, JPEG, GIF, or WebP) and re-encodes it as
// JPEG. If the input is already JPEG, it still decodes and re-encodes, which
// rejects a truncated or corrupt download before it reaches disk.
// Returns the JPEG bytes, width, height, and any error.
func (c *ImageConverter) ConvertToJPEG(data []byte) ([]byte, int, int, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decoding image (format=%s): %w", format, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, 0, 0, fmt.Errorf("encoding to JPEG: %w", err)
	}

	return buf.Bytes(), width, height, nil
}

// ConvertToJPEGReader converts image data from a reader to JPEG format.
// Returns the JPEG data, width, height, and any error.
func (c *ImageConverter) ConvertToJPEGReader(r io.Reader) ([]byte, int, int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("reading image data: %w", err)
	}
	return c.ConvertToJPEG(data)
}

// GetImageDimensions returns the width and height of an image without full conversion.
func (c *ImageConverter) GetImageDimensions(data []byte) (int, int, error) {
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decoding image config: %w", err)
	}
	return config.Width, config.Height, nil
}

// IsSupportedFormat checks if the content type is a supported image format.
func (c *ImageConverter) IsSupportedFormat(contentType string) bool {
	switch contentType {
	case "image/png", "image/jpeg", "image/jpg", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

// Package imageutil rasterizes camera frames and prepares selfie files for submission.
package imageutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// ErrEmptyImage is returned when an image has no pixels to work with.
var ErrEmptyImage = errors.New("image has no pixel data")

// Rasterize draws img into a new width x height bitmap, stretching it the same way a
// canvas drawImage call with explicit dimensions does.
func Rasterize(img image.Image, width, height int) (*image.RGBA, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", width, height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	bounds := img.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
		return dst, nil
	}

	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst, nil
}

// EncodeJPEG encodes img as a JPEG with the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode decodes JPEG, PNG, BMP or WebP data and applies the EXIF orientation,
// so phone selfies arrive upright.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}

	// WebP is not always registered with the image package.
	if webpImg, webpErr := webp.Decode(bytes.NewReader(data)); webpErr == nil {
		return webpImg, nil
	}

	return nil, fmt.Errorf("failed to decode image: %w", err)
}

// PrepareSelfie decodes a selfie, shrinks it to fit within maxSize (width or height)
// while keeping the aspect ratio and re-encodes it as JPEG.
func PrepareSelfie(data []byte, maxSize, quality int) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	if maxSize > 0 && (bounds.Dx() > maxSize || bounds.Dy() > maxSize) {
		img = imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
	}

	return EncodeJPEG(img, quality)
}

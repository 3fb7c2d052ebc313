package archive

import (
	"fmt"
	"image"
	"os"

	// Decoders for the formats a map export may be written in.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ImageInfo describes an archived frame's image header.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// Inspect reads the image header of the file at path without decoding pixels.
func Inspect(path string) (ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to open frame; %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to read image header of %s; %w", path, err)
	}

	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

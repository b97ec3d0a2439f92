// Package metadata generates the derived metadata and intermediate
// image sizes of a new attachment.
package metadata

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"metargb/media-service/internal/models"
	"metargb/media-service/internal/storage"
)

// DefaultMaxPixels bounds the images decoded for resizing; a decoded
// NRGBA image takes four bytes per pixel
const DefaultMaxPixels = 40_000_000

// Generator writes intermediate sizes to a store and describes them
type Generator struct {
	store     storage.Store
	sizes     []Size
	quality   int
	maxPixels int64
	log       *logrus.Entry
}

// NewGenerator builds a Generator. Images above maxPixels keep their
// dimensions but get no intermediate sizes; maxPixels <= 0 means
// DefaultMaxPixels.
func NewGenerator(store storage.Store, sizes []Size, jpegQuality int, maxPixels int64, log *logrus.Entry) *Generator {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 82
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Generator{store: store, sizes: sizes, quality: jpegQuality, maxPixels: maxPixels, log: log}
}

// Size looks up a registered size by name
func (g *Generator) Size(name string) (Size, bool) {
	for _, s := range g.sizes {
		if s.Name == name {
			return s, true
		}
	}
	return Size{}, false
}

// Generate builds metadata for the file dir/filename holding data
func (g *Generator) Generate(ctx context.Context, dir, filename, mimeType string, data []byte) (*models.AttachmentMetadata, error) {
	meta := &models.AttachmentMetadata{
		File:     path.Join(dir, filename),
		FileSize: int64(len(data)),
	}

	if !strings.HasPrefix(mimeType, "image/") {
		return meta, nil
	}

	format, err := imaging.FormatFromFilename(filename)
	if err != nil {
		g.log.WithField("file", meta.File).Debug("no encoder for image format, skipping sizes")
		return meta, nil
	}

	// the header alone tells how much memory a full decode would take
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		g.log.WithError(err).WithField("file", meta.File).Warn("failed to read image header, skipping sizes")
		return meta, nil
	}
	meta.Width = cfg.Width
	meta.Height = cfg.Height
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > g.maxPixels {
		g.log.WithFields(logrus.Fields{
			"file":       meta.File,
			"pixels":     pixels,
			"max_pixels": g.maxPixels,
		}).Warn("image too large to resize, skipping sizes")
		return meta, nil
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		g.log.WithError(err).WithField("file", meta.File).Warn("failed to decode image, skipping sizes")
		return meta, nil
	}

	bounds := src.Bounds()
	meta.Width = bounds.Dx()
	meta.Height = bounds.Dy()

	ext := path.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	for _, size := range g.sizes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		w, h, ok := ResizeDimensions(meta.Width, meta.Height, size)
		if !ok {
			continue
		}

		var dst *image.NRGBA
		if size.Crop && size.Width > 0 && size.Height > 0 {
			dst = imaging.Fill(src, w, h, imaging.Center, imaging.Lanczos)
		} else {
			dst = imaging.Resize(src, w, h, imaging.Lanczos)
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, dst, format, imaging.JPEGQuality(g.quality)); err != nil {
			return nil, fmt.Errorf("failed to encode %s size: %w", size.Name, err)
		}

		sizeFile := fmt.Sprintf("%s-%dx%d%s", base, w, h, ext)
		fileSize := int64(buf.Len())
		if err := g.store.Put(path.Join(dir, sizeFile), &buf); err != nil {
			return nil, fmt.Errorf("failed to store %s size: %w", size.Name, err)
		}

		if meta.Sizes == nil {
			meta.Sizes = make(map[string]models.SizeMeta)
		}
		meta.Sizes[size.Name] = models.SizeMeta{
			File:     sizeFile,
			Width:    w,
			Height:   h,
			MimeType: mimeType,
			FileSize: fileSize,
		}
	}

	return meta, nil
}

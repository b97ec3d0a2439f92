package service

import (
	"context"
	"strings"
	"time"

	"metargb/media-service/internal/fetch"
	"metargb/media-service/internal/field"
	"metargb/media-service/internal/metadata"
	"metargb/media-service/internal/models"
	"metargb/media-service/internal/pubsub"
	"metargb/media-service/internal/storage"
	"metargb/media-service/pkg/logger"
	"metargb/media-service/pkg/metrics"
)

// SizeFull selects the uploaded file itself
const SizeFull = "full"

// PostRepository is the post store the media service works against
type PostRepository interface {
	GetPostType(ctx context.Context, id uint64) (string, bool, error)
	GetThumbnailID(ctx context.Context, postID uint64) (uint64, error)
	FindAttachmentIDByGUID(ctx context.Context, guid string) (uint64, error)
	GetAttachment(ctx context.Context, id uint64) (*models.Attachment, error)
	InsertAttachment(ctx context.Context, a *models.Attachment) error
	UpdateAttachmentMetadata(ctx context.Context, id uint64, meta *models.AttachmentMetadata) error
	SetThumbnail(ctx context.Context, postID, attachmentID uint64) error
}

// Fetcher downloads remote files
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*fetch.Response, error)
}

type MediaService struct {
	repo      PostRepository
	uploads   *storage.Uploads
	fetcher   Fetcher
	generator *metadata.Generator
	publisher pubsub.Publisher
	metrics   *metrics.Metrics
	log       *logger.Logger
	now       func() time.Time
}

func NewMediaService(
	repo PostRepository,
	uploads *storage.Uploads,
	fetcher Fetcher,
	generator *metadata.Generator,
	publisher pubsub.Publisher,
	m *metrics.Metrics,
	log *logger.Logger,
) *MediaService {
	if publisher == nil {
		publisher = pubsub.NewNoopPublisher()
	}
	return &MediaService{
		repo:      repo,
		uploads:   uploads,
		fetcher:   fetcher,
		generator: generator,
		publisher: publisher,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// ResolveAttachmentID turns an image field into an attachment ID.
// Every unresolved case yields 0; errors are reserved for store failures.
func (s *MediaService) ResolveAttachmentID(ctx context.Context, value any) (uint64, error) {
	id, err := s.resolve(ctx, field.Parse(value))
	s.metrics.ObserveResolution(id, err)
	return id, err
}

func (s *MediaService) resolve(ctx context.Context, ref field.Ref) (uint64, error) {
	switch ref.Kind {
	case field.KindID:
		return uint64(ref.ID), nil

	case field.KindGUID:
		return s.repo.FindAttachmentIDByGUID(ctx, ref.GUID)

	case field.KindPostID:
		if ref.ID <= 0 {
			return 0, nil
		}
		id := uint64(ref.ID)

		postType, found, err := s.repo.GetPostType(ctx, id)
		if err != nil || !found {
			return 0, err
		}
		if postType == models.PostTypeAttachment {
			return id, nil
		}
		return s.repo.GetThumbnailID(ctx, id)
	}

	return 0, nil
}

// ImageSrc returns the source of attachment id at size, nil when the
// attachment does not exist or is not an image
func (s *MediaService) ImageSrc(ctx context.Context, id uint64, size string) (*models.ImageSrc, error) {
	if id == 0 {
		return nil, nil
	}

	attachment, err := s.repo.GetAttachment(ctx, id)
	if err != nil || attachment == nil {
		return nil, err
	}

	return s.imageSrc(attachment, size), nil
}

func (s *MediaService) imageSrc(a *models.Attachment, size string) *models.ImageSrc {
	if !a.IsImage() {
		return nil
	}

	fullURL := a.GUID
	if a.AttachedFile != "" {
		fullURL = s.uploads.FileURL(a.AttachedFile)
	}
	if fullURL == "" {
		return nil
	}
	dirURL := fullURL[:strings.LastIndex(fullURL, "/")+1]

	meta := a.Metadata
	if meta == nil {
		meta = &models.AttachmentMetadata{}
	}
	full := &models.ImageSrc{URL: fullURL, Width: meta.Width, Height: meta.Height}

	size = strings.ToLower(strings.TrimSpace(size))
	if size == "" || size == SizeFull {
		return full
	}

	intermediate := func(sm models.SizeMeta) *models.ImageSrc {
		return &models.ImageSrc{
			URL:          dirURL + sm.File,
			Width:        sm.Width,
			Height:       sm.Height,
			Intermediate: true,
		}
	}

	if w, h, err := metadata.ParseDimensions(size); err == nil {
		if sm, ok := closestSize(meta.Sizes, w, h); ok {
			return intermediate(sm)
		}
		full.Width, full.Height = metadata.Constrain(full.Width, full.Height, w, h)
		return full
	}

	if sm, ok := meta.Sizes[size]; ok && sm.File != "" {
		return intermediate(sm)
	}
	if registered, ok := s.generator.Size(size); ok {
		full.Width, full.Height = metadata.Constrain(full.Width, full.Height, registered.Width, registered.Height)
	}
	return full
}

// closestSize picks the smallest generated size covering w x h
func closestSize(sizes map[string]models.SizeMeta, w, h int) (models.SizeMeta, bool) {
	var best models.SizeMeta
	found := false
	for _, sm := range sizes {
		if sm.Width < w || sm.Height < h || sm.File == "" {
			continue
		}
		area := sm.Width * sm.Height
		if !found || area < best.Width*best.Height || (area == best.Width*best.Height && sm.File < best.File) {
			best = sm
			found = true
		}
	}
	return best, found
}

// Image renders <img> markup for field, falling back to def when the
// field yields nothing
func (s *MediaService) Image(ctx context.Context, value any, size string, def any, attrs Attributes) (string, error) {
	id, err := s.ResolveAttachmentID(ctx, value)
	if err != nil {
		return "", err
	}
	defaultID, err := s.ResolveAttachmentID(ctx, def)
	if err != nil {
		return "", err
	}

	markup := ""
	if id > 0 {
		if markup, err = s.renderAttachment(ctx, id, size, attrs); err != nil {
			return "", err
		}
	}
	if markup == "" && defaultID > 0 {
		if markup, err = s.renderAttachment(ctx, defaultID, size, attrs); err != nil {
			return "", err
		}
	}

	return markup, nil
}

// ImageURL returns the first non-empty sized URL of field then def
func (s *MediaService) ImageURL(ctx context.Context, value any, size string, def any) (string, error) {
	id, err := s.ResolveAttachmentID(ctx, value)
	if err != nil {
		return "", err
	}
	defaultID, err := s.ResolveAttachmentID(ctx, def)
	if err != nil {
		return "", err
	}

	for _, candidate := range []uint64{id, defaultID} {
		if candidate == 0 {
			continue
		}
		src, err := s.ImageSrc(ctx, candidate, size)
		if err != nil {
			return "", err
		}
		if src != nil && src.URL != "" {
			return src.URL, nil
		}
	}

	return "", nil
}

func (s *MediaService) renderAttachment(ctx context.Context, id uint64, size string, attrs Attributes) (string, error) {
	attachment, err := s.repo.GetAttachment(ctx, id)
	if err != nil || attachment == nil {
		return "", err
	}

	src := s.imageSrc(attachment, size)
	if src == nil {
		return "", nil
	}

	return renderImg(src, size, attachment.Alt, attrs)
}

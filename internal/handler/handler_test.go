package handler

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"metargb/media-service/internal/fetch"
	"metargb/media-service/internal/metadata"
	"metargb/media-service/internal/models"
	"metargb/media-service/internal/service"
	"metargb/media-service/internal/storage"
	"metargb/media-service/pkg/logger"
	"metargb/media-service/pkg/metrics"
)

const testBaseURL = "http://cdn.test/uploads"

type memoryRepository struct {
	posts      map[uint64]*models.Attachment
	thumbnails map[uint64]uint64
	nextID     uint64

	thumbnailErr error
}

func (r *memoryRepository) GetPostType(ctx context.Context, id uint64) (string, bool, error) {
	post, ok := r.posts[id]
	if !ok {
		return "", false, nil
	}
	return post.PostType, true, nil
}

func (r *memoryRepository) GetThumbnailID(ctx context.Context, postID uint64) (uint64, error) {
	return r.thumbnails[postID], nil
}

func (r *memoryRepository) FindAttachmentIDByGUID(ctx context.Context, guid string) (uint64, error) {
	for id, post := range r.posts {
		if post.GUID == guid {
			return id, nil
		}
	}
	return 0, nil
}

func (r *memoryRepository) GetAttachment(ctx context.Context, id uint64) (*models.Attachment, error) {
	post, ok := r.posts[id]
	if !ok || post.PostType != models.PostTypeAttachment {
		return nil, nil
	}
	return post, nil
}

func (r *memoryRepository) InsertAttachment(ctx context.Context, a *models.Attachment) error {
	r.nextID++
	a.ID = r.nextID
	r.posts[a.ID] = a
	return nil
}

func (r *memoryRepository) UpdateAttachmentMetadata(ctx context.Context, id uint64, meta *models.AttachmentMetadata) error {
	r.posts[id].Metadata = meta
	return nil
}

func (r *memoryRepository) SetThumbnail(ctx context.Context, postID, attachmentID uint64) error {
	if r.thumbnailErr != nil {
		return r.thumbnailErr
	}
	r.thumbnails[postID] = attachmentID
	return nil
}

type staticFetcher map[string][]byte

func (f staticFetcher) Get(ctx context.Context, rawURL string) (*fetch.Response, error) {
	data, ok := f[rawURL]
	if !ok {
		return nil, fetch.ErrStatus
	}
	return &fetch.Response{Data: data}, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 32, 24))))
	return buf.Bytes()
}

// newTestService builds a media service with attachment 12 (featured
// image of page 7) and remote files served by fetcher
func newTestService(t *testing.T, fetcher staticFetcher) (*service.MediaService, *memoryRepository, *logger.Logger) {
	t.Helper()

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	sizes, err := metadata.ParseSizes("thumbnail:150x150:crop,medium:300x300")
	require.NoError(t, err)

	repo := &memoryRepository{
		posts: map[uint64]*models.Attachment{
			7: {Post: models.Post{ID: 7, PostType: "page"}},
			12: {
				Post: models.Post{
					ID:           12,
					PostType:     models.PostTypeAttachment,
					PostMimeType: "image/jpeg",
					GUID:         testBaseURL + "/2026/09/cat.jpg",
				},
				AttachedFile: "2026/09/cat.jpg",
				Alt:          "Cat",
				Metadata: &models.AttachmentMetadata{
					Width:  600,
					Height: 400,
					File:   "2026/09/cat.jpg",
					Sizes: map[string]models.SizeMeta{
						"thumbnail": {File: "cat-150x150.jpg", Width: 150, Height: 150},
					},
				},
			},
		},
		thumbnails: map[uint64]uint64{7: 12},
		nextID:     100,
	}

	log := logger.New("media-service", io.Discard, "error")
	svc := service.NewMediaService(
		repo,
		storage.NewUploads(store, testBaseURL, true),
		fetcher,
		metadata.NewGenerator(store, sizes, 82, 0, log.Entry),
		nil,
		metrics.NewMetrics("handler_test", prometheus.NewRegistry()),
		log,
	)
	return svc, repo, log
}

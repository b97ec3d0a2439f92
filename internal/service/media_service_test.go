package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metargb/media-service/internal/fetch"
	"metargb/media-service/internal/metadata"
	"metargb/media-service/internal/models"
	"metargb/media-service/internal/storage"
	"metargb/media-service/pkg/logger"
	"metargb/media-service/pkg/metrics"
)

const testBaseURL = "http://cdn.test/uploads"

// fakePostRepository keeps posts and meta in memory
type fakePostRepository struct {
	mu         sync.Mutex
	posts      map[uint64]*models.Attachment
	thumbnails map[uint64]uint64
	metadata   map[uint64]*models.AttachmentMetadata
	nextID     uint64

	err          error
	insertErr    error
	thumbnailErr error
}

func newFakePostRepository() *fakePostRepository {
	return &fakePostRepository{
		posts:      make(map[uint64]*models.Attachment),
		thumbnails: make(map[uint64]uint64),
		metadata:   make(map[uint64]*models.AttachmentMetadata),
		nextID:     100,
	}
}

func (r *fakePostRepository) GetPostType(ctx context.Context, id uint64) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", false, r.err
	}
	post, ok := r.posts[id]
	if !ok {
		return "", false, nil
	}
	return post.PostType, true, nil
}

func (r *fakePostRepository) GetThumbnailID(ctx context.Context, postID uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.thumbnails[postID], r.err
}

func (r *fakePostRepository) FindAttachmentIDByGUID(ctx context.Context, guid string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	for id, post := range r.posts {
		if post.PostType == models.PostTypeAttachment && post.GUID == guid {
			return id, nil
		}
	}
	return 0, nil
}

func (r *fakePostRepository) GetAttachment(ctx context.Context, id uint64) (*models.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	post, ok := r.posts[id]
	if !ok || post.PostType != models.PostTypeAttachment {
		return nil, nil
	}
	return post, nil
}

func (r *fakePostRepository) InsertAttachment(ctx context.Context, a *models.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	r.nextID++
	a.ID = r.nextID
	r.posts[a.ID] = a
	return nil
}

func (r *fakePostRepository) UpdateAttachmentMetadata(ctx context.Context, id uint64, meta *models.AttachmentMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata[id] = meta
	if post, ok := r.posts[id]; ok {
		post.Metadata = meta
	}
	return nil
}

func (r *fakePostRepository) SetThumbnail(ctx context.Context, postID, attachmentID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.thumbnailErr != nil {
		return r.thumbnailErr
	}
	r.thumbnails[postID] = attachmentID
	return nil
}

type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string][]byte
	err       error
	calls     int
}

func (f *fakeFetcher) Get(ctx context.Context, rawURL string) (*fetch.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.responses[rawURL]
	if !ok {
		return nil, fetch.ErrStatus
	}
	return &fetch.Response{Data: data}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.AttachmentImportedEvent
	err    error
}

func (p *recordingPublisher) PublishAttachmentImported(ctx context.Context, event models.AttachmentImportedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type testEnv struct {
	service   *MediaService
	repo      *fakePostRepository
	fetcher   *fakeFetcher
	publisher *recordingPublisher
	metrics   *metrics.Metrics
	baseDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	baseDir := t.TempDir()
	store, err := storage.NewLocalStore(baseDir)
	require.NoError(t, err)

	sizes, err := metadata.ParseSizes("thumbnail:150x150:crop,medium:300x300,large:1024x1024")
	require.NoError(t, err)

	log := logger.New("media-service", io.Discard, "error")
	m := metrics.NewMetrics("media_test", prometheus.NewRegistry())
	repo := newFakePostRepository()
	fetcher := &fakeFetcher{responses: make(map[string][]byte)}
	publisher := &recordingPublisher{}

	svc := NewMediaService(
		repo,
		storage.NewUploads(store, testBaseURL, true),
		fetcher,
		metadata.NewGenerator(store, sizes, 82, 0, log.Entry),
		publisher,
		m,
		log,
	)
	svc.now = func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) }

	return &testEnv{
		service:   svc,
		repo:      repo,
		fetcher:   fetcher,
		publisher: publisher,
		metrics:   m,
		baseDir:   baseDir,
	}
}

// seed adds a 600x400 jpeg attachment 12, a png attachment 13, a pdf 14,
// and a page 7 whose featured image is 12
func (e *testEnv) seed() {
	e.repo.posts[12] = &models.Attachment{
		Post: models.Post{
			ID:           12,
			PostType:     models.PostTypeAttachment,
			PostMimeType: "image/jpeg",
			GUID:         testBaseURL + "/2026/09/cat.jpg",
		},
		AttachedFile: "2026/09/cat.jpg",
		Alt:          " A <b>cat</b> ",
		Metadata: &models.AttachmentMetadata{
			Width:  600,
			Height: 400,
			File:   "2026/09/cat.jpg",
			Sizes: map[string]models.SizeMeta{
				"thumbnail": {File: "cat-150x150.jpg", Width: 150, Height: 150, MimeType: "image/jpeg"},
				"medium":    {File: "cat-300x200.jpg", Width: 300, Height: 200, MimeType: "image/jpeg"},
			},
		},
	}
	e.repo.posts[13] = &models.Attachment{
		Post: models.Post{
			ID:           13,
			PostType:     models.PostTypeAttachment,
			PostMimeType: "image/png",
			GUID:         testBaseURL + "/placeholder.png",
		},
		AttachedFile: "placeholder.png",
		Metadata:     &models.AttachmentMetadata{Width: 100, Height: 100, File: "placeholder.png"},
	}
	e.repo.posts[14] = &models.Attachment{
		Post: models.Post{
			ID:           14,
			PostType:     models.PostTypeAttachment,
			PostMimeType: "application/pdf",
			GUID:         testBaseURL + "/2026/09/terms.pdf",
		},
		AttachedFile: "2026/09/terms.pdf",
	}
	e.repo.posts[7] = &models.Attachment{Post: models.Post{ID: 7, PostType: "page"}}
	e.repo.posts[8] = &models.Attachment{Post: models.Post{ID: 8, PostType: "post"}}
	e.repo.thumbnails[7] = 12
}

func TestMediaService_ResolveAttachmentID(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed()

	tests := []struct {
		name  string
		value any
		want  uint64
	}{
		{"nil", nil, 0},
		{"empty string", "", 0},
		{"zero", 0, 0},
		{"attachment id string", "12", 12},
		{"attachment id int", 12, 12},
		{"post with featured image", "7", 12},
		{"post without featured image", 8, 0},
		{"missing post", "99", 0},
		{"negative", "-5", 0},
		{"structured ID", map[string]any{"ID": 12}, 12},
		{"structured ID is trusted", map[string]any{"ID": "55"}, 55},
		{"list of ids", []any{"7"}, 12},
		{"guid", testBaseURL + "/2026/09/cat.jpg", 12},
		{"unknown guid", "http://elsewhere.test/cat.jpg", 0},
		{"post model", &models.Post{ID: 13}, 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := env.service.ResolveAttachmentID(ctx, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}

	assert.Greater(t, testutil.ToFloat64(env.metrics.Resolutions.WithLabelValues("found")), 0.0)
	assert.Greater(t, testutil.ToFloat64(env.metrics.Resolutions.WithLabelValues("not_found")), 0.0)
}

func TestMediaService_ResolveAttachmentID_RepositoryError(t *testing.T) {
	env := newTestEnv(t)
	env.repo.err = errors.New("connection refused")

	id, err := env.service.ResolveAttachmentID(context.Background(), "7")
	assert.Error(t, err)
	assert.Zero(t, id)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Resolutions.WithLabelValues("error")))

	// parsing alone never touches the store
	id, err = env.service.ResolveAttachmentID(context.Background(), map[string]any{"ID": 3})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), id)
}

func TestMediaService_ImageSrc(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed()

	full := &models.ImageSrc{URL: testBaseURL + "/2026/09/cat.jpg", Width: 600, Height: 400}

	tests := []struct {
		name string
		id   uint64
		size string
		want *models.ImageSrc
	}{
		{"named size", 12, "medium", &models.ImageSrc{URL: testBaseURL + "/2026/09/cat-300x200.jpg", Width: 300, Height: 200, Intermediate: true}},
		{"full", 12, "full", full},
		{"empty size is full", 12, "", full},
		{"registered but not generated", 12, "large", full},
		{"unknown size", 12, "poster", full},
		{"explicit dimensions pick covering size", 12, "200x100", &models.ImageSrc{URL: testBaseURL + "/2026/09/cat-300x200.jpg", Width: 300, Height: 200, Intermediate: true}},
		{"explicit dimensions pick smallest", 12, "100x50", &models.ImageSrc{URL: testBaseURL + "/2026/09/cat-150x150.jpg", Width: 150, Height: 150, Intermediate: true}},
		{"explicit dimensions constrain full", 12, "450x450", &models.ImageSrc{URL: testBaseURL + "/2026/09/cat.jpg", Width: 450, Height: 300}},
		{"root level file", 13, "thumbnail", &models.ImageSrc{URL: testBaseURL + "/placeholder.png", Width: 100, Height: 100}},
		{"not an image", 14, "full", nil},
		{"not an attachment", 7, "full", nil},
		{"missing", 99, "full", nil},
		{"zero", 0, "full", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := env.service.ImageSrc(ctx, tt.id, tt.size)
			require.NoError(t, err)
			assert.Equal(t, tt.want, src)
		})
	}
}

func TestMediaService_Image(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed()

	t.Run("renders sized image with attributes", func(t *testing.T) {
		markup, err := env.service.Image(ctx, "12", "medium", nil, Attributes{"class": "hero", "loading": "lazy"})
		require.NoError(t, err)
		assert.Equal(t,
			`<img width="300" height="200" src="http://cdn.test/uploads/2026/09/cat-300x200.jpg" class="hero" alt="A cat" decoding="async" loading="lazy"/>`,
			markup)
	})

	t.Run("featured image of a post", func(t *testing.T) {
		markup, err := env.service.Image(ctx, 7, "thumbnail", nil, nil)
		require.NoError(t, err)
		assert.Equal(t,
			`<img width="150" height="150" src="http://cdn.test/uploads/2026/09/cat-150x150.jpg" class="attachment-thumbnail size-thumbnail" alt="A cat" decoding="async"/>`,
			markup)
	})

	t.Run("falls back to the default image", func(t *testing.T) {
		markup, err := env.service.Image(ctx, "99", "full", 13, nil)
		require.NoError(t, err)
		assert.Equal(t,
			`<img width="100" height="100" src="http://cdn.test/uploads/placeholder.png" class="attachment-full size-full" alt="" decoding="async"/>`,
			markup)
	})

	t.Run("non-image field falls back to the default", func(t *testing.T) {
		markup, err := env.service.Image(ctx, 14, "", "13", nil)
		require.NoError(t, err)
		assert.Contains(t, markup, `src="http://cdn.test/uploads/placeholder.png"`)
	})

	t.Run("explicit dimensions class", func(t *testing.T) {
		markup, err := env.service.Image(ctx, 12, "100x50", nil, ParseAttributes("title=Cat&alt=Kitty"))
		require.NoError(t, err)
		assert.Equal(t,
			`<img width="150" height="150" src="http://cdn.test/uploads/2026/09/cat-150x150.jpg" class="attachment-100x50 size-100x50" alt="Kitty" decoding="async" title="Cat"/>`,
			markup)
	})

	t.Run("attribute values are escaped", func(t *testing.T) {
		markup, err := env.service.Image(ctx, 13, "full", nil, Attributes{"data-caption": `say "hi"`})
		require.NoError(t, err)
		assert.Contains(t, markup, `data-caption="say &#34;hi&#34;"`)
	})

	t.Run("markup in attribute names is dropped", func(t *testing.T) {
		attrs := ParseAttributes("x><script>alert(1)</script><img=1&title=ok")
		assert.Equal(t, Attributes{"title": "ok"}, attrs)

		markup, err := env.service.Image(ctx, 12, "thumbnail", 0, attrs)
		require.NoError(t, err)
		assert.NotContains(t, markup, "<script>")
		assert.Equal(t,
			`<img width="150" height="150" src="http://cdn.test/uploads/2026/09/cat-150x150.jpg" class="attachment-thumbnail size-thumbnail" alt="A cat" decoding="async" title="ok"/>`,
			markup)

		markup, err = env.service.Image(ctx, 12, "thumbnail", 0, Attributes{`onload="x" a`: "1", "data-ok": "2"})
		require.NoError(t, err)
		assert.NotContains(t, markup, "onload")
		assert.Contains(t, markup, `data-ok="2"`)
	})

	t.Run("nothing resolves", func(t *testing.T) {
		markup, err := env.service.Image(ctx, "99", "full", "", nil)
		require.NoError(t, err)
		assert.Empty(t, markup)
	})
}

func TestMediaService_ImageURL(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed()

	tests := []struct {
		name  string
		value any
		size  string
		def   any
		want  string
	}{
		{"primary", 12, "medium", nil, testBaseURL + "/2026/09/cat-300x200.jpg"},
		{"primary full", "7", "full", 13, testBaseURL + "/2026/09/cat.jpg"},
		{"default when primary missing", "99", "medium", 13, testBaseURL + "/placeholder.png"},
		{"default when primary is not an image", 14, "full", 13, testBaseURL + "/placeholder.png"},
		{"nothing", nil, "full", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := env.service.ImageURL(ctx, tt.value, tt.size, tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.want, url)
		})
	}
}

func TestParseAttributes(t *testing.T) {
	assert.Equal(t, Attributes{"class": "a b", "alt": "x"}, ParseAttributes("?class=a+b&alt=x"))
	assert.Equal(t, Attributes{"loading": "lazy", "tabindex": "1"}, ParseAttributes(map[string]any{"Loading": "lazy", "tabindex": 1, "skip": nil}))
	assert.Equal(t, Attributes{"id": "hero"}, ParseAttributes(map[string]string{" id ": "hero", "": "dropped"}))
	assert.Equal(t, Attributes{}, ParseAttributes(42))
	assert.Equal(t, Attributes{}, ParseAttributes(nil))
	assert.Equal(t, Attributes{"data-id": "1"}, ParseAttributes(map[string]string{"data-id": "1", "a b": "x", `x"y`: "z", "1x": "n"}))
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 20, G: 120, B: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestMediaService_ImportAttachment(t *testing.T) {
	ctx := context.Background()
	const sourceURL = "https://example.com/images/My%20Photo.png?size=large"

	t.Run("imports and sets featured image", func(t *testing.T) {
		env := newTestEnv(t)
		env.seed()
		env.fetcher.responses[sourceURL] = testPNG(t, 400, 300)

		id, err := env.service.ImportAttachment(ctx, ImportRequest{URL: sourceURL, ParentID: 7, Featured: true})
		require.NoError(t, err)
		require.NotZero(t, id)

		attachment := env.repo.posts[id]
		require.NotNil(t, attachment)
		assert.Equal(t, models.PostTypeAttachment, attachment.PostType)
		assert.Equal(t, "image/png", attachment.PostMimeType)
		assert.Equal(t, testBaseURL+"/2026/10/My-Photo.png", attachment.GUID)
		assert.Equal(t, "My-Photo", attachment.PostTitle)
		assert.Equal(t, uint64(7), attachment.PostParent)
		assert.Equal(t, "2026/10/My-Photo.png", attachment.AttachedFile)

		assert.FileExists(t, filepath.Join(env.baseDir, "2026", "10", "My-Photo.png"))
		assert.FileExists(t, filepath.Join(env.baseDir, "2026", "10", "My-Photo-150x150.png"))
		assert.FileExists(t, filepath.Join(env.baseDir, "2026", "10", "My-Photo-300x225.png"))

		meta := env.repo.metadata[id]
		require.NotNil(t, meta)
		assert.Equal(t, 400, meta.Width)
		assert.Equal(t, 300, meta.Height)
		assert.Contains(t, meta.Sizes, "thumbnail")
		assert.Contains(t, meta.Sizes, "medium")

		assert.Equal(t, id, env.repo.thumbnails[7])

		require.Len(t, env.publisher.events, 1)
		assert.Equal(t, id, env.publisher.events[0].AttachmentID)
		assert.True(t, env.publisher.events[0].Featured)
		assert.Equal(t, sourceURL, env.publisher.events[0].SourceURL)

		src, err := env.service.ImageSrc(ctx, id, "medium")
		require.NoError(t, err)
		assert.Equal(t, testBaseURL+"/2026/10/My-Photo-300x225.png", src.URL)

		assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Imports.WithLabelValues("ok")))
	})

	t.Run("existing file gets a unique name", func(t *testing.T) {
		env := newTestEnv(t)
		env.fetcher.responses[sourceURL] = testPNG(t, 40, 30)
		require.NoError(t, os.MkdirAll(filepath.Join(env.baseDir, "2026", "10"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(env.baseDir, "2026", "10", "My-Photo.png"), []byte("old"), 0644))

		id, err := env.service.ImportAttachment(ctx, ImportRequest{URL: sourceURL})
		require.NoError(t, err)
		assert.Equal(t, "2026/10/My-Photo-1.png", env.repo.posts[id].AttachedFile)
		assert.Equal(t, testBaseURL+"/2026/10/My-Photo-1.png", env.repo.posts[id].GUID)
	})

	t.Run("concurrent imports of one url keep every file", func(t *testing.T) {
		env := newTestEnv(t)
		env.fetcher.responses[sourceURL] = testPNG(t, 40, 30)

		const imports = 8
		ids := make([]uint64, imports)
		var wg sync.WaitGroup
		for i := 0; i < imports; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id, err := env.service.ImportAttachment(ctx, ImportRequest{URL: sourceURL})
				assert.NoError(t, err)
				ids[i] = id
			}(i)
		}
		wg.Wait()

		files := make(map[string]bool)
		for _, id := range ids {
			require.NotNil(t, env.repo.posts[id])
			file := env.repo.posts[id].AttachedFile
			assert.False(t, files[file], "%s registered twice", file)
			files[file] = true
			assert.FileExists(t, filepath.Join(env.baseDir, filepath.FromSlash(file)))
		}
		assert.Len(t, files, imports)
		assert.True(t, files["2026/10/My-Photo.png"])
	})

	t.Run("featured without parent is ignored", func(t *testing.T) {
		env := newTestEnv(t)
		env.fetcher.responses[sourceURL] = testPNG(t, 40, 30)

		id, err := env.service.ImportAttachment(ctx, ImportRequest{URL: sourceURL, Featured: true})
		require.NoError(t, err)
		assert.NotZero(t, id)
		assert.Empty(t, env.repo.thumbnails)
		assert.False(t, env.publisher.events[0].Featured)
	})

	t.Run("extension corrected to content", func(t *testing.T) {
		env := newTestEnv(t)
		env.fetcher.responses["https://example.com/photo.jpg"] = testPNG(t, 40, 30)

		id, err := env.service.ImportAttachment(ctx, ImportRequest{URL: "https://example.com/photo.jpg"})
		require.NoError(t, err)
		assert.Equal(t, "2026/10/photo.png", env.repo.posts[id].AttachedFile)
		assert.Equal(t, "image/png", env.repo.posts[id].PostMimeType)
	})

	t.Run("download failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.fetcher.err = fetch.ErrTooLarge

		id, err := env.service.ImportAttachment(ctx, ImportRequest{URL: sourceURL})
		assert.ErrorIs(t, err, ErrDownload)
		assert.Zero(t, id)
		assert.Len(t, env.repo.posts, 0)
		assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Imports.WithLabelValues("download")))
	})

	t.Run("disallowed extension", func(t *testing.T) {
		env := newTestEnv(t)
		env.fetcher.responses["https://example.com/setup.exe"] = []byte("MZ")

		_, err := env.service.ImportAttachment(ctx, ImportRequest{URL: "https://example.com/setup.exe"})
		assert.ErrorIs(t, err, ErrFileType)
		assert.NoFileExists(t, filepath.Join(env.baseDir, "2026", "10", "setup.exe"))
	})

	t.Run("content does not match extension", func(t *testing.T) {
		env := newTestEnv(t)
		env.fetcher.responses["https://example.com/fake.png"] = []byte("just some text, not an image at all")

		_, err := env.service.ImportAttachment(ctx, ImportRequest{URL: "https://example.com/fake.png"})
		assert.ErrorIs(t, err, ErrFileType)
		assert.Len(t, env.repo.posts, 0)
	})

	t.Run("insert failure removes the file", func(t *testing.T) {
		env := newTestEnv(t)
		env.fetcher.responses[sourceURL] = testPNG(t, 40, 30)
		env.repo.insertErr = errors.New("duplicate entry")

		id, err := env.service.ImportAttachment(ctx, ImportRequest{URL: sourceURL})
		assert.ErrorIs(t, err, ErrInsert)
		assert.Zero(t, id)
		assert.NoFileExists(t, filepath.Join(env.baseDir, "2026", "10", "My-Photo.png"))
		assert.Empty(t, env.publisher.events)
	})

	t.Run("featured image failure keeps the attachment", func(t *testing.T) {
		env := newTestEnv(t)
		env.seed()
		env.fetcher.responses[sourceURL] = testPNG(t, 40, 30)
		env.repo.thumbnailErr = errors.New("lock wait timeout")

		id, err := env.service.ImportAttachment(ctx, ImportRequest{URL: sourceURL, ParentID: 8, Featured: true})
		assert.ErrorIs(t, err, ErrFeatured)
		assert.NotZero(t, id)
		assert.NotNil(t, env.repo.posts[id])
	})

	t.Run("publish failure does not fail the import", func(t *testing.T) {
		env := newTestEnv(t)
		env.fetcher.responses[sourceURL] = testPNG(t, 40, 30)
		env.publisher.err = errors.New("redis down")

		id, err := env.service.ImportAttachment(ctx, ImportRequest{URL: sourceURL})
		require.NoError(t, err)
		assert.NotZero(t, id)
	})

	t.Run("upload directory unavailable", func(t *testing.T) {
		env := newTestEnv(t)
		env.fetcher.responses[sourceURL] = testPNG(t, 40, 30)
		require.NoError(t, os.WriteFile(filepath.Join(env.baseDir, "2026"), []byte("not a dir"), 0644))

		_, err := env.service.ImportAttachment(ctx, ImportRequest{URL: sourceURL})
		assert.ErrorIs(t, err, ErrUploadDir)
		assert.Zero(t, env.fetcher.calls)
		assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Imports.WithLabelValues("upload_dir")))
	})
}

package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"metargb/media-service/internal/filetype"
	"metargb/media-service/internal/models"
	"metargb/media-service/internal/storage"
)

// ImportRequest describes a remote file to import as an attachment
type ImportRequest struct {
	URL      string
	ParentID uint64
	Featured bool
}

// ImportAttachment downloads req.URL into the current upload directory
// and registers it as an attachment of req.ParentID. When the featured
// image cannot be set the new attachment ID is returned with ErrFeatured.
func (s *MediaService) ImportAttachment(ctx context.Context, req ImportRequest) (id uint64, err error) {
	log := s.log.WithFields(logrus.Fields{
		"url":       req.URL,
		"parent_id": req.ParentID,
	})
	defer func() {
		s.metrics.ObserveImport(importResult(err))
		if err != nil {
			log.WithError(err).Warn("attachment import failed")
		}
	}()

	filename := storage.FilenameFromURL(req.URL)

	dir, err := s.uploads.Dir(s.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUploadDir, err)
	}

	filename, err = s.uploads.UniqueFilename(dir.Path, filename)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUploadDir, err)
	}

	resp, err := s.fetcher.Get(ctx, req.URL)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDownload, err)
	}

	info := filetype.Check(filename)
	if !info.Allowed() {
		return 0, fmt.Errorf("%w: %s", ErrFileType, filename)
	}

	verified, err := filetype.Verify(info, resp.Data)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFileType, err)
	}
	if verified.Ext != info.Ext {
		renamed := strings.TrimSuffix(filename, path.Ext(filename)) + "." + verified.Ext
		if filename, err = s.uploads.UniqueFilename(dir.Path, renamed); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUploadDir, err)
		}
	}

	// the name is only reserved once Save creates the file; a concurrent
	// import may have taken it since UniqueFilename
	if filename, err = s.uploads.Save(dir.Path, filename, resp.Data); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStore, err)
	}
	store := s.uploads.Store()
	relPath := path.Join(dir.Path, filename)

	title := strings.TrimSuffix(filename, path.Ext(filename))
	attachment := &models.Attachment{
		Post: models.Post{
			PostType:     models.PostTypeAttachment,
			PostMimeType: verified.Type,
			GUID:         dir.URL + "/" + filename,
			PostTitle:    title,
			PostName:     strings.ToLower(title),
			PostStatus:   "inherit",
			PostParent:   req.ParentID,
			PostDate:     s.now(),
		},
		AttachedFile: relPath,
	}

	if err := s.repo.InsertAttachment(ctx, attachment); err != nil {
		if delErr := store.Delete(relPath); delErr != nil {
			log.WithError(delErr).WithField("file", relPath).Warn("failed to remove orphaned upload")
		}
		return 0, fmt.Errorf("%w: %v", ErrInsert, err)
	}
	id = attachment.ID
	log = s.log.WithAttachmentID(id).WithFields(logrus.Fields{
		"url":       req.URL,
		"parent_id": req.ParentID,
	})

	meta, genErr := s.generator.Generate(ctx, dir.Path, filename, verified.Type, resp.Data)
	if genErr != nil {
		log.WithError(genErr).Warn("failed to generate attachment metadata")
		meta = &models.AttachmentMetadata{File: relPath, FileSize: int64(len(resp.Data))}
	}
	if err := s.repo.UpdateAttachmentMetadata(ctx, id, meta); err != nil {
		log.WithError(err).Warn("failed to store attachment metadata")
	}

	if req.ParentID > 0 && req.Featured {
		if err := s.repo.SetThumbnail(ctx, req.ParentID, id); err != nil {
			return id, fmt.Errorf("%w: %v", ErrFeatured, err)
		}
	}

	event := models.AttachmentImportedEvent{
		AttachmentID: id,
		ParentID:     req.ParentID,
		Featured:     req.Featured && req.ParentID > 0,
		SourceURL:    req.URL,
		GUID:         attachment.GUID,
		MimeType:     verified.Type,
		ImportedAt:   s.now(),
	}
	if err := s.publisher.PublishAttachmentImported(ctx, event); err != nil {
		log.WithError(err).Warn("failed to publish attachment imported event")
	}

	log.Info("attachment imported")
	return id, nil
}

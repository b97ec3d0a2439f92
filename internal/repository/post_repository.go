package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"metargb/media-service/internal/models"
)

// PostRepository reads and writes attachment posts and their meta
type PostRepository struct {
	db       *sql.DB
	posts    string
	postmeta string
}

func NewPostRepository(db *sql.DB, tablePrefix string) *PostRepository {
	return &PostRepository{
		db:       db,
		posts:    tablePrefix + "posts",
		postmeta: tablePrefix + "postmeta",
	}
}

// GetPostType returns the post_type of a post, false when the post does not exist
func (r *PostRepository) GetPostType(ctx context.Context, id uint64) (string, bool, error) {
	query := fmt.Sprintf("SELECT post_type FROM %s WHERE ID = ?", r.posts)

	var postType string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&postType)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get post type: %w", err)
	}

	return postType, true, nil
}

// GetThumbnailID returns the featured image ID of a post, 0 when unset
func (r *PostRepository) GetThumbnailID(ctx context.Context, postID uint64) (uint64, error) {
	value, ok, err := r.getMeta(ctx, postID, models.MetaThumbnailID)
	if err != nil {
		return 0, fmt.Errorf("failed to get thumbnail id: %w", err)
	}
	if !ok {
		return 0, nil
	}

	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, nil
	}
	return id, nil
}

// FindAttachmentIDByGUID returns the attachment whose guid equals guid exactly, 0 when none
func (r *PostRepository) FindAttachmentIDByGUID(ctx context.Context, guid string) (uint64, error) {
	query := fmt.Sprintf("SELECT ID FROM %s WHERE post_type = ? AND guid = ? ORDER BY ID ASC LIMIT 1", r.posts)

	var id uint64
	err := r.db.QueryRowContext(ctx, query, models.PostTypeAttachment, guid).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find attachment by guid: %w", err)
	}

	return id, nil
}

// GetAttachment loads an attachment with its file, metadata and alt meta; nil when absent
func (r *PostRepository) GetAttachment(ctx context.Context, id uint64) (*models.Attachment, error) {
	query := fmt.Sprintf(`SELECT ID, post_type, post_mime_type, guid, post_title, post_name, post_status, post_parent, post_date
		FROM %s WHERE ID = ?`, r.posts)

	var a models.Attachment
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID,
		&a.PostType,
		&a.PostMimeType,
		&a.GUID,
		&a.PostTitle,
		&a.PostName,
		&a.PostStatus,
		&a.PostParent,
		&a.PostDate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	if a.PostType != models.PostTypeAttachment {
		return nil, nil
	}

	metaQuery := fmt.Sprintf("SELECT meta_key, meta_value FROM %s WHERE post_id = ? AND meta_key IN (?, ?, ?) ORDER BY meta_id ASC", r.postmeta)
	rows, err := r.db.QueryContext(ctx, metaQuery, id,
		models.MetaAttachedFile,
		models.MetaAttachmentMetadata,
		models.MetaAttachmentAlt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment meta: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan attachment meta: %w", err)
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		switch key {
		case models.MetaAttachedFile:
			a.AttachedFile = value.String
		case models.MetaAttachmentAlt:
			a.Alt = value.String
		case models.MetaAttachmentMetadata:
			if value.String == "" {
				continue
			}
			var meta models.AttachmentMetadata
			if err := json.Unmarshal([]byte(value.String), &meta); err != nil {
				// unreadable metadata behaves like missing metadata
				continue
			}
			a.Metadata = &meta
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read attachment meta: %w", err)
	}

	return &a, nil
}

// InsertAttachment creates the attachment post and its attached file meta
func (r *PostRepository) InsertAttachment(ctx context.Context, a *models.Attachment) error {
	if a.PostDate.IsZero() {
		a.PostDate = time.Now()
	}
	if a.PostStatus == "" {
		a.PostStatus = "inherit"
	}
	a.PostType = models.PostTypeAttachment

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (post_type, post_mime_type, guid, post_title, post_name, post_status, post_parent,
			post_date, post_date_gmt, post_modified, post_modified_gmt,
			post_content, post_excerpt, to_ping, pinged, post_content_filtered)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', '', '', '')
	`, r.posts)

	gmt := a.PostDate.UTC()
	result, err := tx.ExecContext(ctx, query,
		a.PostType,
		a.PostMimeType,
		a.GUID,
		a.PostTitle,
		a.PostName,
		a.PostStatus,
		a.PostParent,
		a.PostDate,
		gmt,
		a.PostDate,
		gmt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get attachment ID: %w", err)
	}

	if a.AttachedFile != "" {
		metaQuery := fmt.Sprintf("INSERT INTO %s (post_id, meta_key, meta_value) VALUES (?, ?, ?)", r.postmeta)
		if _, err := tx.ExecContext(ctx, metaQuery, id, models.MetaAttachedFile, a.AttachedFile); err != nil {
			return fmt.Errorf("failed to insert attached file meta: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit attachment: %w", err)
	}

	a.ID = uint64(id)
	return nil
}

// UpdateAttachmentMetadata stores the derived metadata of an attachment
func (r *PostRepository) UpdateAttachmentMetadata(ctx context.Context, id uint64, meta *models.AttachmentMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode attachment metadata: %w", err)
	}
	if err := r.setMeta(ctx, id, models.MetaAttachmentMetadata, string(data)); err != nil {
		return fmt.Errorf("failed to update attachment metadata: %w", err)
	}
	return nil
}

// SetThumbnail marks attachmentID as the featured image of postID
func (r *PostRepository) SetThumbnail(ctx context.Context, postID, attachmentID uint64) error {
	if err := r.setMeta(ctx, postID, models.MetaThumbnailID, strconv.FormatUint(attachmentID, 10)); err != nil {
		return fmt.Errorf("failed to set thumbnail: %w", err)
	}
	return nil
}

func (r *PostRepository) getMeta(ctx context.Context, postID uint64, key string) (string, bool, error) {
	query := fmt.Sprintf("SELECT meta_value FROM %s WHERE post_id = ? AND meta_key = ? ORDER BY meta_id ASC LIMIT 1", r.postmeta)

	var value sql.NullString
	err := r.db.QueryRowContext(ctx, query, postID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value.String, true, nil
}

// setMeta updates the first row for key or inserts one; MySQL reports zero
// affected rows for unchanged values so existence is checked explicitly
func (r *PostRepository) setMeta(ctx context.Context, postID uint64, key, value string) error {
	query := fmt.Sprintf("SELECT meta_id FROM %s WHERE post_id = ? AND meta_key = ? ORDER BY meta_id ASC LIMIT 1", r.postmeta)

	var metaID uint64
	err := r.db.QueryRowContext(ctx, query, postID, key).Scan(&metaID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		insert := fmt.Sprintf("INSERT INTO %s (post_id, meta_key, meta_value) VALUES (?, ?, ?)", r.postmeta)
		_, err = r.db.ExecContext(ctx, insert, postID, key, value)
	case err == nil:
		update := fmt.Sprintf("UPDATE %s SET meta_value = ? WHERE meta_id = ?", r.postmeta)
		_, err = r.db.ExecContext(ctx, update, value, metaID)
	}
	return err
}

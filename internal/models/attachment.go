package models

import (
	"strings"
	"time"
)

// PostTypeAttachment is the post_type of media library records
const PostTypeAttachment = "attachment"

// Meta keys stored in postmeta
const (
	MetaAttachedFile       = "_wp_attached_file"
	MetaAttachmentMetadata = "_wp_attachment_metadata"
	MetaAttachmentAlt      = "_wp_attachment_image_alt"
	MetaThumbnailID        = "_thumbnail_id"
)

// Post represents a row of the posts table
type Post struct {
	ID           uint64    `db:"ID"`
	PostType     string    `db:"post_type"`
	PostMimeType string    `db:"post_mime_type"`
	GUID         string    `db:"guid"`
	PostTitle    string    `db:"post_title"`
	PostName     string    `db:"post_name"`
	PostStatus   string    `db:"post_status"`
	PostParent   uint64    `db:"post_parent"`
	PostDate     time.Time `db:"post_date"`
}

// Attachment is an attachment post with its media meta
type Attachment struct {
	Post
	AttachedFile string              // relative to the upload base dir, e.g. 2026/10/photo.jpg
	Metadata     *AttachmentMetadata // nil when never generated
	Alt          string
}

// IsImage reports whether the attachment holds an image mime type
func (a *Attachment) IsImage() bool {
	return strings.HasPrefix(a.PostMimeType, "image/")
}

// AttachmentMetadata is the derived metadata of an attachment
type AttachmentMetadata struct {
	Width    int                 `json:"width,omitempty"`
	Height   int                 `json:"height,omitempty"`
	File     string              `json:"file"`
	FileSize int64               `json:"filesize,omitempty"`
	Sizes    map[string]SizeMeta `json:"sizes,omitempty"`
}

// SizeMeta describes one generated intermediate size
type SizeMeta struct {
	File     string `json:"file"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	MimeType string `json:"mime-type"`
	FileSize int64  `json:"filesize,omitempty"`
}

// ImageSrc is a resolved sized image source
type ImageSrc struct {
	URL          string
	Width        int
	Height       int
	Intermediate bool
}

package service

import "errors"

// Import failures, matched with errors.Is
var (
	ErrUploadDir = errors.New("upload directory unavailable")
	ErrDownload  = errors.New("remote download failed")
	ErrFileType  = errors.New("file type not permitted")
	ErrStore     = errors.New("failed to write upload")
	ErrInsert    = errors.New("failed to register attachment")
	ErrFeatured  = errors.New("failed to set featured image")
)

// importResult labels err for the imports metric
func importResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUploadDir):
		return "upload_dir"
	case errors.Is(err, ErrDownload):
		return "download"
	case errors.Is(err, ErrFileType):
		return "file_type"
	case errors.Is(err, ErrStore):
		return "store"
	case errors.Is(err, ErrInsert):
		return "insert"
	case errors.Is(err, ErrFeatured):
		return "featured"
	default:
		return "error"
	}
}

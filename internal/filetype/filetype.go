// Package filetype decides which uploads are allowed and what they contain.
package filetype

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrNotAllowed is returned for extensions outside the allowed table
	ErrNotAllowed = errors.New("file type is not allowed")
	// ErrMismatch is returned when content does not match the extension
	ErrMismatch = errors.New("file content does not match its extension")
)

// Info is the outcome of a file type check; empty when not allowed
type Info struct {
	Ext  string // without dot
	Type string
}

// Allowed reports whether the check found an allowed type
func (i Info) Allowed() bool {
	return i.Ext != "" && i.Type != ""
}

// allowed maps extension patterns to mime types, first matching pattern wins
var allowed = []struct {
	exts string
	mime string
}{
	{"jpg|jpeg|jpe", "image/jpeg"},
	{"gif", "image/gif"},
	{"png", "image/png"},
	{"bmp", "image/bmp"},
	{"tiff|tif", "image/tiff"},
	{"webp", "image/webp"},
	{"avif", "image/avif"},
	{"ico", "image/x-icon"},
	{"heic", "image/heic"},
	{"asf|asx", "video/x-ms-asf"},
	{"wmv", "video/x-ms-wmv"},
	{"avi", "video/avi"},
	{"mov|qt", "video/quicktime"},
	{"mpeg|mpg|mpe", "video/mpeg"},
	{"mp4|m4v", "video/mp4"},
	{"ogv", "video/ogg"},
	{"webm", "video/webm"},
	{"mkv", "video/x-matroska"},
	{"3gp|3gpp", "video/3gpp"},
	{"txt|asc|c|cc|h|srt", "text/plain"},
	{"csv", "text/csv"},
	{"tsv", "text/tab-separated-values"},
	{"vtt", "text/vtt"},
	{"mp3|m4a|m4b", "audio/mpeg"},
	{"aac", "audio/aac"},
	{"ra|ram", "audio/x-realaudio"},
	{"wav", "audio/wav"},
	{"ogg|oga", "audio/ogg"},
	{"flac", "audio/flac"},
	{"mid|midi", "audio/midi"},
	{"wma", "audio/x-ms-wma"},
	{"rtf", "application/rtf"},
	{"pdf", "application/pdf"},
	{"tar", "application/x-tar"},
	{"zip", "application/zip"},
	{"gz|gzip", "application/x-gzip"},
	{"7z", "application/x-7z-compressed"},
	{"doc", "application/msword"},
	{"docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	{"xls", "application/vnd.ms-excel"},
	{"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	{"ppt", "application/vnd.ms-powerpoint"},
	{"pptx", "application/vnd.openxmlformats-officedocument.presentationml.presentation"},
	{"odt", "application/vnd.oasis.opendocument.text"},
	{"ods", "application/vnd.oasis.opendocument.spreadsheet"},
	{"odp", "application/vnd.oasis.opendocument.presentation"},
}

// Check returns the allowed type for filename's extension
func Check(filename string) Info {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		return Info{}
	}
	for _, entry := range allowed {
		for _, candidate := range strings.Split(entry.exts, "|") {
			if candidate == ext {
				return Info{Ext: ext, Type: entry.mime}
			}
		}
	}
	return Info{}
}

// IsAllowedType reports whether mime appears in the allowed table
func IsAllowedType(mime string) bool {
	for _, entry := range allowed {
		if entry.mime == mime {
			return true
		}
	}
	return false
}

// Sniff returns the mime type detected from the leading bytes of data
func Sniff(data []byte) string {
	mime := mimetype.Detect(data).String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return mime
}

// Verify checks data against the declared info. A different allowed
// image type is corrected to the detected one; anything whose detected
// type disagrees with the declared family is rejected.
func Verify(info Info, data []byte) (Info, error) {
	if !info.Allowed() {
		return Info{}, ErrNotAllowed
	}

	detected := mimetype.Detect(data)
	if detected.Is(info.Type) {
		return info, nil
	}

	declaredFamily := family(info.Type)
	detectedType := Sniff(data)
	detectedFamily := family(detectedType)

	switch {
	case declaredFamily == "image":
		if detectedFamily == "image" && IsAllowedType(detectedType) {
			corrected := Check("file" + detected.Extension())
			if corrected.Allowed() {
				return corrected, nil
			}
		}
	case declaredFamily == "text":
		if detectedFamily == "text" && detectedType != "text/html" {
			return info, nil
		}
	case declaredFamily == detectedFamily:
		return info, nil
	case declaredFamily == "application" && detectedType == "application/octet-stream":
		// office formats and archives the detector does not know
		return info, nil
	}

	return Info{}, fmt.Errorf("%w: declared %s, detected %s", ErrMismatch, info.Type, detectedType)
}

func family(mime string) string {
	if i := strings.IndexByte(mime, '/'); i > 0 {
		return mime[:i]
	}
	return mime
}

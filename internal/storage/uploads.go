package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// UploadDir describes where a new upload is written and served from
type UploadDir struct {
	Path string // relative to the store root, "" or "2026/10"
	URL  string // public URL of Path
}

// Uploads resolves upload directories and file names on a Store
type Uploads struct {
	store        Store
	baseURL      string
	useYearMonth bool
}

func NewUploads(store Store, baseURL string, useYearMonth bool) *Uploads {
	return &Uploads{
		store:        store,
		baseURL:      strings.TrimRight(baseURL, "/"),
		useYearMonth: useYearMonth,
	}
}

// Store returns the underlying store
func (u *Uploads) Store() Store {
	return u.store
}

// Dir returns the upload directory for t, creating it when needed
func (u *Uploads) Dir(t time.Time) (UploadDir, error) {
	dir := UploadDir{URL: u.baseURL}
	if u.useYearMonth {
		dir.Path = t.Format("2006/01")
		dir.URL = u.baseURL + "/" + dir.Path
	}

	if err := u.store.MkdirAll(dir.Path); err != nil {
		return UploadDir{}, fmt.Errorf("unable to create directory %s: %w", dir.Path, err)
	}

	return dir, nil
}

// FileURL returns the public URL of a path relative to the store root
func (u *Uploads) FileURL(relPath string) string {
	return u.baseURL + "/" + strings.TrimLeft(relPath, "/")
}

// UniqueFilename sanitises name and appends -1, -2, ... before the
// extension until no file with that name exists in dir
func (u *Uploads) UniqueFilename(dir, name string) (string, error) {
	name = SanitizeFilename(name)
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 1; ; i++ {
		exists, err := u.store.Exists(path.Join(dir, candidate))
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d%s", base, i, ext)
	}
}

// maxSaveAttempts bounds how often Save moves to a new name after losing a race
const maxSaveAttempts = 50

// Save writes data as dir/name, or as the next free variant of name when
// another writer claimed it first, and returns the name actually written
func (u *Uploads) Save(dir, name string, data []byte) (string, error) {
	requested := name
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		err := u.store.Create(path.Join(dir, name), bytes.NewReader(data))
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
		if name, err = u.UniqueFilename(dir, requested); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free file name for %s in %q after %d attempts", requested, dir, maxSaveAttempts)
}

// FilenameFromURL returns the unescaped last path segment of rawURL
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		idx := strings.LastIndex(rawURL, "/")
		return rawURL[idx+1:]
	}
	return path.Base(path.Clean("/" + u.Path))
}

var (
	specialChars = regexp.MustCompile(`[?\[\]/\\=<>:;,'"&$#*()|~` + "`" + `!{}%+’«»”“]`)
	dashRuns     = regexp.MustCompile(`[\s-]+`)
)

// SanitizeFilename strips characters that are unsafe in file names and URLs
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.ReplaceAll(name, "%20", " ")
	name = specialChars.ReplaceAllString(name, "")
	name = dashRuns.ReplaceAllString(name, "-")
	name = strings.Trim(name, ".-_")

	if name == "" {
		return "unnamed-file"
	}
	return name
}

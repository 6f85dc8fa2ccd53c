package localfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store writes staged-image previews under a local directory and hands
// out URL-path handles the HTTP layer can serve. Revoking a handle
// deletes the file; a handle is only ever revoked once, by the staging
// set that owns it.
type Store struct {
	dir     string
	urlBase string
}

func New(dir, urlBase string) *Store {
	return &Store{dir: dir, urlBase: strings.TrimRight(urlBase, "/")}
}

func (s *Store) Create(name string, data []byte) (string, error) {
	ext := filepath.Ext(name)
	if len(ext) > 10 {
		ext = ""
	}
	fn := uuid.New().String() + ext
	if err := os.WriteFile(filepath.Join(s.dir, fn), data, 0o644); err != nil {
		return "", err
	}
	return s.urlBase + "/" + fn, nil
}

func (s *Store) Revoke(handle string) error {
	fn := strings.TrimPrefix(handle, s.urlBase+"/")
	if fn == "" || strings.Contains(fn, "/") || strings.Contains(fn, "..") {
		return fmt.Errorf("bad preview handle %q", handle)
	}
	return os.Remove(filepath.Join(s.dir, fn))
}

// Dir exposes the preview directory for the HTTP file server.
func (s *Store) Dir() string { return s.dir }

package compose

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	namePrefix = "pb_"
	tempPrefix = ".pb-"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// allowedExt lists the extensions served and deleted through the admin panel.
var allowedExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// Sink writes finished canvases into the content directory.
type Sink struct {
	Dir string
	Now func() time.Time

	mkdir    sync.Once
	mkdirErr error
}

// NewSink creates the content directory and returns a sink writing into it.
func NewSink(dir string) (*Sink, error) {
	s := &Sink{Dir: dir, Now: time.Now}
	if err := s.ensureDir(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureDir() error {
	s.mkdir.Do(func() {
		if err := os.MkdirAll(s.Dir, 0o755); err != nil {
			s.mkdirErr = wrapError(KindPersist, err, "create content dir")
		}
	})
	return s.mkdirErr
}

// NewName returns a fresh file name: a microsecond UTC timestamp plus a
// random suffix, so concurrent writers never pick the same name.
func (s *Sink) NewName() string {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	t := now().UTC()
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s%s%06d_%s.png", namePrefix, t.Format("20060102T150405"), t.Nanosecond()/1000, id[:8])
}

// Write encodes img as PNG under a new name. The data goes to a temporary
// file first and is renamed into place, so readers never see a partial file.
func (s *Sink) Write(img image.Image) (name string, size int64, err error) {
	if err := s.ensureDir(); err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(s.Dir, tempPrefix+"*.tmp")
	if err != nil {
		return "", 0, wrapError(KindPersist, err, "create temp file")
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err = png.Encode(w, img); err != nil {
		return "", 0, wrapError(KindPersist, err, "encode png")
	}
	if err = w.Flush(); err != nil {
		return "", 0, wrapError(KindPersist, err, "write png")
	}
	if err = tmp.Sync(); err != nil {
		return "", 0, wrapError(KindPersist, err, "sync png")
	}
	info, err := tmp.Stat()
	if err != nil {
		return "", 0, wrapError(KindPersist, err, "stat png")
	}
	if err = tmp.Close(); err != nil {
		return "", 0, wrapError(KindPersist, err, "close png")
	}

	name = s.NewName()
	if err = os.Rename(tmp.Name(), filepath.Join(s.Dir, name)); err != nil {
		return "", 0, wrapError(KindPersist, err, "rename png")
	}
	return name, info.Size(), nil
}

// ValidName reports whether name is a safe, single path segment naming a
// stored image.
func ValidName(name string) bool {
	if name == "" || len(name) > 128 || strings.Contains(name, "..") {
		return false
	}
	if !validName.MatchString(name) {
		return false
	}
	return allowedExt[strings.ToLower(filepath.Ext(name))]
}

// ResolvePath joins a collaborator-provided name onto dir after checking
// it cannot escape the directory.
func ResolvePath(dir, name string) (string, error) {
	if !ValidName(name) {
		return "", newError(KindInvalidName, "invalid file name %q", name)
	}
	return filepath.Join(dir, name), nil
}

// Photo describes a stored image.
type Photo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// List returns the stored images in dir, newest first. Temporary and
// hidden files are skipped. A missing directory yields an empty list.
func List(dir string) ([]Photo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	photos := make([]Photo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !ValidName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		photos = append(photos, Photo{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(photos, func(i, j int) bool {
		if photos[i].ModTime.Equal(photos[j].ModTime) {
			return photos[i].Name > photos[j].Name
		}
		return photos[i].ModTime.After(photos[j].ModTime)
	})
	return photos, nil
}

// Remove deletes a single stored image. A file that is already gone is
// not an error.
func Remove(dir, name string) error {
	path, err := ResolvePath(dir, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return wrapError(KindPersist, err, "remove %s", name)
	}
	return nil
}

// RemoveAll deletes every stored image in dir and returns how many went.
func RemoveAll(dir string) (int, error) {
	photos, err := List(dir)
	if err != nil {
		return 0, wrapError(KindPersist, err, "list content dir")
	}
	n := 0
	for _, p := range photos {
		if err := Remove(dir, p.Name); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

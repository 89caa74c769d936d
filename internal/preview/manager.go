package preview

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"thumbforge-client/internal/model"
	"thumbforge-client/pkg/logger"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MaxImageBytes bounds a selected image.
const MaxImageBytes = 20 << 20

var AcceptedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/gif",
	"image/heic",
	"image/heif",
	"image/svg+xml",
}

var (
	ErrEmptyImage       = errors.New("image is empty")
	ErrImageTooLarge    = fmt.Errorf("image exceeds %d bytes", MaxImageBytes)
	ErrUnsupportedImage = errors.New("unsupported image type")
)

// Handle addresses one live preview resource.
type Handle struct {
	ID   string `json:"id"`
	URI  string `json:"uri"`
	Path string `json:"path"`
}

// Resources creates and releases preview resources.
type Resources interface {
	Acquire(img *model.SelectedImage) (Handle, error)
	Release(h Handle) error
}

// FileResources materializes previews as files in Dir.
type FileResources struct {
	Dir string
}

func (f FileResources) Acquire(img *model.SelectedImage) (Handle, error) {
	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return Handle{}, err
	}

	id := uuid.NewString()
	ext := ""
	if mt := mimetype.Lookup(img.ContentType); mt != nil {
		ext = mt.Extension()
	}

	path, err := filepath.Abs(filepath.Join(f.Dir, id+ext))
	if err != nil {
		return Handle{}, err
	}
	if err := os.WriteFile(path, img.Data, 0600); err != nil {
		return Handle{}, err
	}

	uri := (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
	return Handle{ID: id, URI: uri, Path: path}, nil
}

func (f FileResources) Release(h Handle) error {
	if err := os.Remove(h.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Manager owns the selected image and its single preview resource. Nothing
// else creates or releases previews.
type Manager struct {
	res Resources

	mu      sync.RWMutex
	image   *model.SelectedImage
	current *Handle
}

func NewManager(dir string) *Manager {
	return NewManagerWithResources(FileResources{Dir: dir})
}

func NewManagerWithResources(res Resources) *Manager {
	return &Manager{res: res}
}

// Select replaces the selected image. The new preview is created, the old
// one released, and only then is the new handle returned. A failed release
// is logged and does not fail the selection. On any other error the previous
// selection is left untouched.
func (m *Manager) Select(name string, r io.Reader) (Handle, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return Handle{}, fmt.Errorf("reading image: %w", err)
	}
	if len(data) == 0 {
		return Handle{}, ErrEmptyImage
	}
	if len(data) > MaxImageBytes {
		return Handle{}, ErrImageTooLarge
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), AcceptedTypes...) {
		return Handle{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, mt.String())
	}

	img := &model.SelectedImage{
		Name:        filepath.Base(name),
		ContentType: mt.String(),
		Data:        data,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h, err := m.res.Acquire(img)
	if err != nil {
		return Handle{}, fmt.Errorf("creating preview: %w", err)
	}

	if m.current != nil {
		m.release(*m.current)
	}
	m.image = img
	m.current = &h

	logger.WithFields(logrus.Fields{
		"preview":      h.ID,
		"content_type": img.ContentType,
		"size":         len(data),
	}).Debug("image selected")

	return h, nil
}

func (m *Manager) SelectFile(path string) (Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return Handle{}, err
	}
	defer f.Close()
	return m.Select(filepath.Base(path), f)
}

func (m *Manager) release(h Handle) {
	if err := m.res.Release(h); err != nil {
		logger.Warnf("releasing preview %s: %v", h.ID, err)
	}
}

func (m *Manager) Current() (Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Handle{}, false
	}
	return *m.current, true
}

// SelectedFile returns the selected image. Callers must not modify it.
func (m *Manager) SelectedFile() (*model.SelectedImage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.image, m.image != nil
}

// Close releases the live preview and forgets the selection.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.release(*m.current)
	}
	m.current = nil
	m.image = nil
}

package preview

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"thumbforge-client/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

var gifBytes = append([]byte("GIF89a"), make([]byte, 32)...)

// countingResources tracks live handles and can fail releases on demand.
type countingResources struct {
	mu          sync.Mutex
	next        int
	live        map[string]bool
	maxLive     int
	failRelease bool
	failAcquire bool
}

func newCounting() *countingResources {
	return &countingResources{live: make(map[string]bool)}
}

func (c *countingResources) Acquire(_ *model.SelectedImage) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAcquire {
		return Handle{}, errors.New("no space left")
	}
	c.next++
	id := string(rune('a' + c.next))
	c.live[id] = true
	return Handle{ID: id, URI: "mem://" + id}, nil
}

func (c *countingResources) Release(h Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failRelease {
		return errors.New("revoke failed")
	}
	delete(c.live, h.ID)
	return nil
}

func (c *countingResources) liveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

func TestManager_SinglePreviewInvariant(t *testing.T) {
	res := newCounting()
	m := NewManagerWithResources(res)

	var previous Handle
	for i := 0; i < 5; i++ {
		h, err := m.Select("thumb.png", bytes.NewReader(pngBytes))
		require.NoError(t, err)
		assert.Equal(t, 1, res.liveCount())
		assert.NotEqual(t, previous.ID, h.ID)

		current, ok := m.Current()
		require.True(t, ok)
		assert.Equal(t, h, current)
		previous = h
	}

	m.Close()
	assert.Equal(t, 0, res.liveCount())
	_, ok := m.SelectedFile()
	assert.False(t, ok)
}

func TestManager_ReleaseFailureDoesNotAbortSelection(t *testing.T) {
	res := newCounting()
	m := NewManagerWithResources(res)

	_, err := m.Select("one.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)

	res.failRelease = true
	h, err := m.Select("two.gif", bytes.NewReader(gifBytes))
	require.NoError(t, err)

	current, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, h.ID, current.ID)

	img, ok := m.SelectedFile()
	require.True(t, ok)
	assert.Equal(t, "two.gif", img.Name)
	assert.Equal(t, "image/gif", img.ContentType)
}

func TestManager_RejectedSelectionKeepsPrevious(t *testing.T) {
	res := newCounting()
	m := NewManagerWithResources(res)

	first, err := m.Select("one.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)

	_, err = m.Select("notes.txt", strings.NewReader("just some text"))
	require.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = m.Select("empty.png", bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrEmptyImage)

	res.failAcquire = true
	_, err = m.Select("two.png", bytes.NewReader(pngBytes))
	require.Error(t, err)

	current, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, first.ID, current.ID)
	assert.Equal(t, 1, res.liveCount())

	img, ok := m.SelectedFile()
	require.True(t, ok)
	assert.Equal(t, "one.png", img.Name)
}

func TestManager_TooLarge(t *testing.T) {
	m := NewManagerWithResources(newCounting())

	big := make([]byte, MaxImageBytes+1)
	copy(big, pngBytes)

	_, err := m.Select("big.png", bytes.NewReader(big))
	require.ErrorIs(t, err, ErrImageTooLarge)
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestManager_FilePreviews(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.png")
	require.NoError(t, os.WriteFile(src, pngBytes, 0644))

	previews := filepath.Join(dir, "previews")
	m := NewManager(previews)

	first, err := m.SelectFile(src)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.URI, "file://"))
	assert.Equal(t, ".png", filepath.Ext(first.Path))

	data, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	second, err := m.SelectFile(src)
	require.NoError(t, err)

	entries, err := os.ReadDir(previews)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(second.Path), entries[0].Name())

	_, err = os.Stat(first.Path)
	assert.True(t, os.IsNotExist(err))

	m.Close()
	entries, err = os.ReadDir(previews)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestManager_SelectFileMissing(t *testing.T) {
	m := NewManager(t.TempDir())
	_, err := m.SelectFile(filepath.Join(t.TempDir(), "absent.png"))
	require.Error(t, err)
}

package storage

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"disk":   NewDiskStorage(filepath.Join(t.TempDir(), "profile")),
	}
}

func receive(t *testing.T, sub *Subscription) Change {
	t.Helper()
	select {
	case c, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
		return Change{}
	}
}

func TestStorage_GetSetClear(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()

			_, ok, err := store.Get(KeyUsage)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(KeyUsage, "3"))
			value, ok, err := store.Get(KeyUsage)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "3", value)

			require.NoError(t, store.Clear(KeyUsage))
			_, ok, err = store.Get(KeyUsage)
			require.NoError(t, err)
			assert.False(t, ok)

			// clearing an absent key is not an error
			require.NoError(t, store.Clear(KeyUsage))
		})
	}
}

func TestStorage_InvalidKey(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()

			for _, key := range []string{"", "../escape", ".hidden", "a/b", "count.tmp", "history.db"} {
				require.ErrorIs(t, store.Set(key, "x"), ErrInvalidKey, key)
				_, _, err := store.Get(key)
				require.ErrorIs(t, err, ErrInvalidKey, key)
			}
		})
	}
}

func TestStorage_SubscribersSeeLocalChanges(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()

			first := store.Subscribe()
			second := store.Subscribe()
			defer first.Close()
			defer second.Close()

			require.NoError(t, store.Set(KeyTheme, "dark"))

			for _, sub := range []*Subscription{first, second} {
				c := receive(t, sub)
				assert.Equal(t, KeyTheme, c.Key)
				assert.Equal(t, "dark", c.Value)
				assert.True(t, c.Present)
				assert.Equal(t, OriginLocal, c.Origin)
			}

			require.NoError(t, store.Clear(KeyTheme))
			c := receive(t, first)
			assert.Equal(t, KeyTheme, c.Key)
			assert.False(t, c.Present)
		})
	}
}

func TestStorage_UnsubscribeClosesChannel(t *testing.T) {
	store := NewMemoryStorage()
	defer store.Close()

	sub := store.Subscribe()
	sub.Close()
	sub.Close()

	_, ok := <-sub.C()
	assert.False(t, ok)

	// publishing after unsubscribe must not panic
	require.NoError(t, store.Set(KeyUsage, "1"))
}

func TestStorage_CloseRejectsOperations(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			sub := store.Subscribe()
			require.NoError(t, store.Close())

			_, ok := <-sub.C()
			assert.False(t, ok)

			require.ErrorIs(t, store.Set(KeyUsage, "1"), ErrStorageClosed)
			_, _, err := store.Get(KeyUsage)
			require.ErrorIs(t, err, ErrStorageClosed)
		})
	}
}

func TestBroker_SlowSubscriberKeepsLatest(t *testing.T) {
	store := NewMemoryStorage()
	defer store.Close()

	sub := store.Subscribe()
	defer sub.Close()

	for i := 0; i < subscriptionBuffer*3; i++ {
		require.NoError(t, store.Set(KeyUsage, string(rune('a'+i%26))))
	}
	require.NoError(t, store.Set(KeyUsage, "final"))

	var last Change
	for len(sub.C()) > 0 {
		last = <-sub.C()
	}
	assert.Equal(t, "final", last.Value)
}

func TestDiskStorage_LazyDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "profile")
	store := NewDiskStorage(dir)
	defer store.Close()

	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))

	_, _, err = store.Get(KeyAuth)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestDiskStorage_CrossInstanceNotification(t *testing.T) {
	dir := t.TempDir()
	writer := NewDiskStorage(dir)
	reader := NewDiskStorage(dir)
	defer writer.Close()
	defer reader.Close()

	sub := reader.Subscribe()
	defer sub.Close()

	require.NoError(t, writer.Set(KeyUsage, "7"))

	for {
		c := receive(t, sub)
		if c.Key != KeyUsage || !c.Present {
			continue
		}
		assert.Equal(t, "7", c.Value)
		assert.Equal(t, OriginRemote, c.Origin)
		break
	}

	require.NoError(t, writer.Clear(KeyUsage))
	for {
		c := receive(t, sub)
		if c.Key != KeyUsage || c.Present {
			continue
		}
		assert.Equal(t, OriginRemote, c.Origin)
		break
	}
}

func TestDiskStorage_OwnWritesNotEchoed(t *testing.T) {
	store := NewDiskStorage(t.TempDir())
	defer store.Close()

	sub := store.Subscribe()
	defer sub.Close()

	require.NoError(t, store.Set(KeyTheme, "dark"))
	c := receive(t, sub)
	assert.Equal(t, OriginLocal, c.Origin)

	select {
	case c := <-sub.C():
		t.Fatalf("unexpected echo: %+v", c)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDiskStorage_IgnoresNonKeyFiles(t *testing.T) {
	dir := t.TempDir()
	writer := NewDiskStorage(dir)
	reader := NewDiskStorage(dir)
	defer writer.Close()
	defer reader.Close()

	sub := reader.Subscribe()
	defer sub.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "history.db"), make([]byte, 1<<20), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "history.db-journal"), []byte("j"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "previews"), 0755))

	// events are delivered in order, so the first change must be the key
	// written after the unrelated files.
	require.NoError(t, writer.Set(KeyUsage, "2"))
	c := receive(t, sub)
	assert.Equal(t, KeyUsage, c.Key)
	assert.Equal(t, "2", c.Value)

	select {
	case c := <-sub.C():
		assert.Equal(t, KeyUsage, c.Key)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDiskStorage_ConcurrentWritersAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	const writers = 4
	const rounds = 25

	stores := make([]*DiskStorage, writers)
	for i := range stores {
		stores[i] = NewDiskStorage(dir)
		defer stores[i].Close()
	}

	var wg sync.WaitGroup
	for i, s := range stores {
		wg.Add(1)
		go func(i int, s *DiskStorage) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				assert.NoError(t, s.Set(KeyUsage, strconv.Itoa(i)))
			}
		}(i, s)
	}
	wg.Wait()

	value, ok, err := stores[0].Get(KeyUsage)
	require.NoError(t, err)
	require.True(t, ok)
	n, err := strconv.Atoi(value)
	require.NoError(t, err)
	assert.True(t, n >= 0 && n < writers)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), tmpSuffix), e.Name())
	}
}

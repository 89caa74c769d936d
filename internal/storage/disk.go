package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"thumbforge-client/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const tmpSuffix = ".tmp"

type snapshot struct {
	value   string
	present bool
}

// DiskStorage keeps one file per key under dataDir. Several processes may
// share the directory; changes written by the others are picked up through
// an fsnotify watch and published with OriginRemote.
//
// There is no locking across processes. Writes are atomic per key (temp file
// plus rename) but read-modify-write sequences built on top may interleave.
type DiskStorage struct {
	dataDir string

	initOnce sync.Once
	initErr  error

	mu     sync.Mutex
	closed bool
	// last value published per key, used to drop watcher echoes of our own
	// writes and duplicate events for the same content.
	seen map[string]snapshot

	broker *broker

	watchOnce sync.Once
	watcher   *fsnotify.Watcher
	watchDone chan struct{}
}

func NewDiskStorage(dataDir string) *DiskStorage {
	return &DiskStorage{
		dataDir: dataDir,
		seen:    make(map[string]snapshot),
		broker:  newBroker(),
	}
}

func (d *DiskStorage) ensureDir() error {
	d.initOnce.Do(func() {
		if err := os.MkdirAll(d.dataDir, 0755); err != nil {
			d.initErr = fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
	})
	return d.initErr
}

func (d *DiskStorage) path(key string) string {
	return filepath.Join(d.dataDir, key)
}

func (d *DiskStorage) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *DiskStorage) Get(key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	if d.isClosed() {
		return "", false, ErrStorageClosed
	}
	if err := d.ensureDir(); err != nil {
		return "", false, err
	}
	return d.read(key)
}

func (d *DiskStorage) read(key string) (string, bool, error) {
	data, err := os.ReadFile(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return string(data), true, nil
}

func (d *DiskStorage) Set(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if d.isClosed() {
		return ErrStorageClosed
	}
	if err := d.ensureDir(); err != nil {
		return err
	}

	// each writer gets its own temp file so concurrent writers from other
	// processes never rename each other's partial writes.
	tmp, err := os.CreateTemp(d.dataDir, key+"-*"+tmpSuffix)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	tempPath := tmp.Name()
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := os.Rename(tempPath, d.path(key)); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.publish(Change{Key: key, Value: value, Present: true, Origin: OriginLocal})
	return nil
}

func (d *DiskStorage) Clear(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if d.isClosed() {
		return ErrStorageClosed
	}
	if err := d.ensureDir(); err != nil {
		return err
	}

	if err := os.Remove(d.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.publish(Change{Key: key, Origin: OriginLocal})
	return nil
}

// publish forwards c unless it repeats the last published state of the key.
// Local changes are always forwarded.
func (d *DiskStorage) publish(c Change) {
	snap := snapshot{value: c.Value, present: c.Present}

	d.mu.Lock()
	prev, known := d.seen[c.Key]
	d.seen[c.Key] = snap
	d.mu.Unlock()

	if c.Origin == OriginRemote && known && prev == snap {
		return
	}
	d.broker.publish(c)
}

// Subscribe starts the directory watch on first use. If the watch cannot be
// established the subscription still receives local changes and a warning is
// logged; observers then rely on explicit re-reads.
func (d *DiskStorage) Subscribe() *Subscription {
	sub := d.broker.subscribe()
	if d.isClosed() {
		return sub
	}
	d.watchOnce.Do(d.startWatch)
	return sub
}

func (d *DiskStorage) startWatch() {
	log := logger.WithFields(logrus.Fields{"data_dir": d.dataDir})

	if err := d.ensureDir(); err != nil {
		log.Warnf("profile watch disabled: %v", err)
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warnf("profile watch disabled: %v", err)
		return
	}
	if err := watcher.Add(d.dataDir); err != nil {
		watcher.Close()
		log.Warnf("profile watch disabled: %v", err)
		return
	}

	d.mu.Lock()
	d.watcher = watcher
	d.watchDone = make(chan struct{})
	d.mu.Unlock()

	go d.watchLoop(watcher, d.watchDone)
}

func (d *DiskStorage) watchLoop(watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			d.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("profile watch error: %v", err)
		}
	}
}

func (d *DiskStorage) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return
	}

	key := filepath.Base(ev.Name)
	if validateKey(key) != nil {
		return
	}

	value, present, err := d.read(key)
	if err != nil {
		logger.Warnf("re-read of %s after change failed: %v", key, err)
		return
	}

	d.publish(Change{Key: key, Value: value, Present: present, Origin: OriginRemote})
}

func (d *DiskStorage) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	watcher, done := d.watcher, d.watchDone
	d.mu.Unlock()

	var err error
	if watcher != nil {
		err = watcher.Close()
		<-done
	}

	d.broker.close()
	return err
}

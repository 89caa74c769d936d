package storage

import "sync"

// MemoryStorage keeps the profile in process memory. Subscribers of the same
// instance play the role of separate windows.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
	broker *broker
	closed bool
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		values: make(map[string]string),
		broker: newBroker(),
	}
}

func (m *MemoryStorage) Get(key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", false, ErrStorageClosed
	}
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrStorageClosed
	}
	m.values[key] = value
	m.mu.Unlock()

	m.broker.publish(Change{Key: key, Value: value, Present: true, Origin: OriginLocal})
	return nil
}

func (m *MemoryStorage) Clear(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrStorageClosed
	}
	delete(m.values, key)
	m.mu.Unlock()

	m.broker.publish(Change{Key: key, Origin: OriginLocal})
	return nil
}

func (m *MemoryStorage) Subscribe() *Subscription {
	return m.broker.subscribe()
}

func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.broker.close()
	return nil
}

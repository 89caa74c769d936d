package theme

import (
	"sync"

	"thumbforge-client/internal/model"
	"thumbforge-client/internal/storage"
	"thumbforge-client/pkg/logger"
)

// Preferences stores the light/dark choice. It is the only writer of
// storage.KeyTheme.
type Preferences struct {
	store    storage.Storage
	fallback model.Theme

	sub  *storage.Subscription
	done chan struct{}

	mu        sync.Mutex
	listeners []func(model.Theme)
}

// New returns preferences that report fallback until a theme is stored.
func New(store storage.Storage, fallback model.Theme) *Preferences {
	if _, err := model.ParseTheme(string(fallback)); err != nil {
		fallback = model.ThemeLight
	}
	p := &Preferences{
		store:    store,
		fallback: fallback,
		sub:      store.Subscribe(),
		done:     make(chan struct{}),
	}
	go p.watch()
	return p
}

func (p *Preferences) watch() {
	defer close(p.done)
	for c := range p.sub.C() {
		if c.Key != storage.KeyTheme {
			continue
		}
		current := p.Current()
		p.mu.Lock()
		listeners := append([]func(model.Theme){}, p.listeners...)
		p.mu.Unlock()
		for _, fn := range listeners {
			fn(current)
		}
	}
}

func (p *Preferences) OnChange(fn func(model.Theme)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Current returns the stored theme, or the fallback when none or an
// unknown value is stored.
func (p *Preferences) Current() model.Theme {
	raw, ok, err := p.store.Get(storage.KeyTheme)
	if err != nil {
		logger.Warnf("reading theme: %v", err)
		return p.fallback
	}
	if !ok {
		return p.fallback
	}
	t, err := model.ParseTheme(raw)
	if err != nil {
		return p.fallback
	}
	return t
}

func (p *Preferences) Set(t model.Theme) error {
	if _, err := model.ParseTheme(string(t)); err != nil {
		return err
	}
	return p.store.Set(storage.KeyTheme, string(t))
}

func (p *Preferences) Toggle() (model.Theme, error) {
	next := p.Current().Toggle()
	if err := p.Set(next); err != nil {
		return "", err
	}
	return next, nil
}

func (p *Preferences) Close() {
	p.sub.Close()
	<-p.done
}

package storage

import "fmt"

// Persisted keys. Each key has exactly one writer; every other component only
// reads it or observes its changes through a Subscription.
const (
	// KeyAuth holds the JSON-encoded model.AuthSession. Written only by auth.Gate.
	KeyAuth = "thumbforge_auth"
	// KeyUsage holds the decimal generation counter. Written only by quota.Tracker.
	KeyUsage = "thumbforge_count"
	// KeyTheme holds "light" or "dark". Written only by theme.Preferences.
	KeyTheme = "thumbforge_theme"
)

// Storage is the process-wide persisted key/value state of one profile.
// Implementations initialize lazily on first use.
type Storage interface {
	// Get returns the stored value and whether the key is present.
	Get(key string) (string, bool, error)
	// Set persists the value and publishes a Change to every subscriber.
	Set(key, value string) error
	// Clear removes the key and publishes a Change with Present == false.
	Clear(key string) error
	// Subscribe registers a new observer. Close the subscription on teardown.
	Subscribe() *Subscription
	Close() error
}

var declaredKeys = map[string]bool{
	KeyAuth:  true,
	KeyUsage: true,
	KeyTheme: true,
}

// validateKey accepts only the declared keys. The profile directory also holds
// the history database, previews and temp files; none of those are state.
func validateKey(key string) error {
	if !declaredKeys[key] {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

package theme

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

// Key is the preference name the theme is saved under
const Key = "mm_theme"

type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

var ErrUnknownTheme = errors.New("unknown theme")

func Parse(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case Light:
		return Light, nil
	case Dark:
		return Dark, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTheme, s)
}

// Toggle returns the other theme
func (t Theme) Toggle() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

// Icon is the label of the button that switches away from t
func (t Theme) Icon() string {
	if t == Dark {
		return "☀️"
	}
	return "🌙"
}

// Resolve picks the saved theme when there is one, otherwise follows the
// environment's dark preference.
func Resolve(saved Theme, ok bool, prefersDark bool) Theme {
	if ok {
		return saved
	}
	if prefersDark {
		return Dark
	}
	return Light
}

// Store keeps preferences in a TOML file
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath is prefs.toml in the user's mmfeed config directory
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "mmfeed", "prefs.toml"), nil
}

func (s *Store) Path() string {
	return s.path
}

// Get returns the saved theme. ok is false when nothing valid was saved.
func (s *Store) Get() (Theme, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs, err := s.read()
	if err != nil {
		return "", false, err
	}

	raw, ok := prefs[Key]
	if !ok {
		return "", false, nil
	}
	t, err := Parse(raw)
	if err != nil {
		log.WithFields(log.Fields{
			"path":  s.path,
			"value": raw,
		}).Warn("Ignoring invalid saved theme")
		return "", false, nil
	}
	return t, true, nil
}

// Set saves the theme, keeping any other preferences in the file
func (s *Store) Set(t Theme) error {
	if _, err := Parse(string(t)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prefs, err := s.read()
	if err != nil {
		return err
	}
	prefs[Key] = string(t)

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(prefs); err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	return nil
}

func (s *Store) read() (map[string]string, error) {
	prefs := map[string]string{}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return prefs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading preferences: %w", err)
	}

	if err := toml.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("error parsing preferences: %w", err)
	}
	return prefs, nil
}

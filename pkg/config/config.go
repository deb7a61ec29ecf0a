// Package config is the persisted credential and settings store.
//
// Values live in a small YAML file grouped by section (linear, github, oauth, repo) and are
// read through viper so that every key can be overridden from the environment:
// "linear.api_key" becomes PRFLOW_LINEAR_API_KEY. Only setup commands write to the store.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Known keys.
const (
	KeyLinearAPIKey      = "linear.api_key"
	KeyCommentOnIssue    = "linear.comment_on_pr"
	KeyGitHubToken       = "github.token"
	KeyGitHubAuthMode    = "github.auth_mode"
	KeyRepoPath          = "repo.path"
	KeyBaseBranch        = "repo.base_branch"
	KeyRemote            = "repo.remote"
	KeyOAuthClientID     = "oauth.client_id"
	KeyOAuthClientSecret = "oauth.client_secret"
)

const (
	// DefaultBaseBranch is the integration branch new work starts from.
	DefaultBaseBranch = "develop"
	// DefaultRemote is the git remote branches are fetched from and pushed to.
	DefaultRemote = "origin"

	// AuthModeToken means the GitHub token was pasted by the user.
	AuthModeToken = "token"
	// AuthModeOAuth means the GitHub token came from the loopback OAuth flow.
	AuthModeOAuth = "oauth"

	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "PRFLOW"
	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "PRFLOW_CONFIG"
)

var defaults = map[string]string{
	KeyBaseBranch:     DefaultBaseBranch,
	KeyRemote:         DefaultRemote,
	KeyGitHubAuthMode: AuthModeToken,
	KeyCommentOnIssue: "false",
}

// ErrMissing is returned by Require when a value is not configured.
var ErrMissing = errors.New("not configured")

// Reader gives read access to configuration values.
type Reader interface {
	Get(key string) string
}

// ReadWriter is implemented by stores that setup commands can mutate.
type ReadWriter interface {
	Reader
	Set(key, value string) error
	Save() error
}

// Store is the file-backed configuration.
type Store struct {
	path   string
	values map[string]map[string]string
	v      *viper.Viper
}

// DefaultPath returns $PRFLOW_CONFIG or <user config dir>/prflow/config.yaml.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "prflow", "config.yaml"), nil
}

// Load reads the store at path. A missing file yields an empty store.
func Load(path string) (*Store, error) {
	s := &Store{
		path:   path,
		values: make(map[string]map[string]string),
		v:      newViper(),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}

	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if s.values == nil {
		s.values = make(map[string]map[string]string)
	}
	if err := s.v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	return s, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Get returns the effective value for key: explicit Set, environment, file, then default.
func (s *Store) Get(key string) string {
	return strings.TrimSpace(s.v.GetString(key))
}

// Set stores a value in memory; call Save to persist it.
func (s *Store) Set(key, value string) error {
	section, name, err := splitKey(key)
	if err != nil {
		return err
	}
	if s.values[section] == nil {
		s.values[section] = make(map[string]string)
	}
	s.values[section][name] = value
	s.v.Set(key, value)
	return nil
}

// Keys lists the keys persisted in the file, sorted.
func (s *Store) Keys() []string {
	var keys []string
	for section, entries := range s.values {
		for name := range entries {
			keys = append(keys, section+"."+name)
		}
	}
	sort.Strings(keys)
	return keys
}

// Save writes the persisted values back to disk with owner-only permissions.
func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config %s: %w", s.path, err)
	}
	return nil
}

func splitKey(key string) (string, string, error) {
	section, name, ok := strings.Cut(key, ".")
	if !ok || section == "" || name == "" || strings.Contains(name, ".") {
		return "", "", fmt.Errorf("invalid config key %q (expected section.name)", key)
	}
	return section, name, nil
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Require returns the value for key or an ErrMissing error naming how to fix it.
func Require(r Reader, key, what string) (string, error) {
	if v := r.Get(key); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s %w (run 'prflow setup' or set %s)", what, ErrMissing, EnvName(key))
}

// Bool parses a boolean setting, treating anything unparseable as false.
func Bool(r Reader, key string) bool {
	b, err := strconv.ParseBool(r.Get(key))
	return err == nil && b
}

// MemoryStore is an in-memory ReadWriter with the same defaults as Store.
type MemoryStore struct {
	values map[string]string
	saved  int
}

// NewMemoryStore seeds a store with the given values.
func NewMemoryStore(values map[string]string) *MemoryStore {
	m := &MemoryStore{values: make(map[string]string)}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

// Get returns the value for key or its default.
func (m *MemoryStore) Get(key string) string {
	if v, ok := m.values[key]; ok {
		return v
	}
	return defaults[key]
}

// Set stores a value.
func (m *MemoryStore) Set(key, value string) error {
	if _, _, err := splitKey(key); err != nil {
		return err
	}
	m.values[key] = value
	return nil
}

// Save counts calls so tests can assert persistence happened.
func (m *MemoryStore) Save() error {
	m.saved++
	return nil
}

// Saves reports how many times Save was called.
func (m *MemoryStore) Saves() int {
	return m.saved
}

package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/oukeidos/ravemix/internal/files"
	"github.com/oukeidos/ravemix/internal/logger"
)

// EnvPrefix lets environment variables override file values, e.g.
// RAVEMIX_CONNECTION_HOST.
const EnvPrefix = "RAVEMIX"

// FilePreferences is a YAML-backed Preferences for the CLI. Every setter
// writes the file immediately.
type FilePreferences struct {
	mu   sync.Mutex
	path string
	v    *viper.Viper
}

// OpenFilePreferences loads path if it exists. A missing file is not an
// error; it is created on the first write.
func OpenFilePreferences(path string) (*FilePreferences, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
	}
	return &FilePreferences{path: path, v: v}, nil
}

func (p *FilePreferences) Path() string { return p.path }

func (p *FilePreferences) StringWithFallback(key, fallback string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.v.IsSet(key) {
		return fallback
	}
	return p.v.GetString(key)
}

func (p *FilePreferences) IntWithFallback(key string, fallback int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.v.IsSet(key) {
		return fallback
	}
	return p.v.GetInt(key)
}

func (p *FilePreferences) SetString(key, value string) {
	p.set(key, value)
}

func (p *FilePreferences) SetInt(key string, value int) {
	p.set(key, value)
}

func (p *FilePreferences) set(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.v.Set(key, value)
	if err := p.saveLocked(); err != nil {
		logger.Error("Failed to save settings", "path", p.path, "error", err)
	}
}

func (p *FilePreferences) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return err
	}
	if err := files.RejectSymlinkPath(p.path); err != nil {
		return err
	}
	return p.v.WriteConfigAs(p.path)
}

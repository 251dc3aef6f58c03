// Package settings persists the remote service address and the last
// selected audio entry.
package settings

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/catalog"
)

type Scheme string

const (
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
)

// Address is where the processing service listens.
type Address struct {
	Scheme Scheme
	Host   string
	Port   int
}

// DefaultAddress is used until the user changes any field.
var DefaultAddress = Address{Scheme: SchemeHTTP, Host: "192.168.0.1", Port: 8000}

// BaseURL renders scheme://host:port.
func (a Address) BaseURL() string {
	return fmt.Sprintf("%s://%s", a.Scheme, net.JoinHostPort(a.Host, strconv.Itoa(a.Port)))
}

func (a Address) String() string { return a.BaseURL() }

func (a Address) Validate() error {
	if a.Scheme != SchemeHTTP && a.Scheme != SchemeHTTPS {
		return apperrors.Invalid(fmt.Sprintf("Unsupported scheme %q (use http or https).", a.Scheme))
	}
	host := strings.TrimSpace(a.Host)
	if host == "" {
		return apperrors.Invalid("Host is required.")
	}
	if strings.ContainsAny(host, "/?# ") {
		return apperrors.Invalid(fmt.Sprintf("Invalid host %q.", a.Host))
	}
	if a.Port < 0 || a.Port > 65535 {
		return apperrors.Invalid(fmt.Sprintf("Port %d is out of range (0-65535).", a.Port))
	}
	return nil
}

// Preferences is the key-value surface the store needs. fyne.Preferences
// satisfies it, as does FilePreferences.
type Preferences interface {
	StringWithFallback(key, fallback string) string
	SetString(key, value string)
	IntWithFallback(key string, fallback int) int
	SetInt(key string, value int)
}

// Keys accepted by Patch.
const (
	KeyScheme = "scheme"
	KeyHost   = "host"
	KeyPort   = "port"
)

const (
	prefScheme    = "connection.scheme"
	prefHost      = "connection.host"
	prefPort      = "connection.port"
	prefSelection = "library.selection"
)

// Store reads and writes settings through Preferences.
type Store struct {
	mu    sync.Mutex
	prefs Preferences
}

func NewStore(prefs Preferences) *Store {
	return &Store{prefs: prefs}
}

func (s *Store) Address() Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addressLocked()
}

func (s *Store) addressLocked() Address {
	return Address{
		Scheme: Scheme(s.prefs.StringWithFallback(prefScheme, string(DefaultAddress.Scheme))),
		Host:   s.prefs.StringWithFallback(prefHost, DefaultAddress.Host),
		Port:   s.prefs.IntWithFallback(prefPort, DefaultAddress.Port),
	}
}

func (s *Store) SetAddress(a Address) error {
	a.Host = strings.TrimSpace(a.Host)
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.SetString(prefScheme, string(a.Scheme))
	s.prefs.SetString(prefHost, a.Host)
	s.prefs.SetInt(prefPort, a.Port)
	return nil
}

// Patch changes a single address field and returns the new address.
func (s *Store) Patch(key, value string) (Address, error) {
	s.mu.Lock()
	a := s.addressLocked()
	s.mu.Unlock()

	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case KeyScheme:
		a.Scheme = Scheme(strings.ToLower(value))
	case KeyHost:
		a.Host = value
	case KeyPort:
		port, err := strconv.Atoi(value)
		if err != nil {
			return Address{}, apperrors.Invalid(fmt.Sprintf("Port must be a number, got %q.", value))
		}
		a.Port = port
	default:
		return Address{}, apperrors.Invalid(fmt.Sprintf("Unknown setting %q (use scheme, host or port).", key))
	}
	if err := s.SetAddress(a); err != nil {
		return Address{}, err
	}
	return a, nil
}

// LastSelection returns the persisted selection, if any.
func (s *Store) LastSelection() (catalog.Entry, bool) {
	s.mu.Lock()
	raw := s.prefs.StringWithFallback(prefSelection, "")
	s.mu.Unlock()
	if raw == "" {
		return catalog.Entry{}, false
	}
	var e catalog.Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil || e.IsZero() {
		return catalog.Entry{}, false
	}
	return e, true
}

// SaveSelection implements selection.Persister.
func (s *Store) SaveSelection(e catalog.Entry, ok bool) error {
	value := ""
	if ok {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		value = string(data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.SetString(prefSelection, value)
	return nil
}

package sites

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samvad-hq/turnstile-verifier/pkg/turnstile"
	"gopkg.in/yaml.v3"
)

// DefaultID names the site built from the default secret key.
const DefaultID = "default"

// configFile represents the structure of the sites configuration file.
type configFile struct {
	Sites []siteEntry `json:"sites" yaml:"sites"`
}

// siteEntry is a single site as declared in the file.
type siteEntry struct {
	ID      string       `json:"id" yaml:"id"`
	Secret  string       `json:"secret" yaml:"secret"`
	Enabled *bool        `json:"enabled" yaml:"enabled"`
	Expect  *expectEntry `json:"expect" yaml:"expect"`
}

type expectEntry struct {
	Hostname string `json:"hostname" yaml:"hostname"`
	Action   string `json:"action" yaml:"action"`
}

// Site is a Turnstile widget the verifier can check tokens for.
type Site struct {
	ID      string
	Secret  turnstile.Secret
	Enabled bool
	// ExpectedHostname and ExpectedAction, when set, must match the siteverify result.
	ExpectedHostname string
	ExpectedAction   string
}

// Registry materializes site definitions loaded from config files.
type Registry struct {
	mu    sync.RWMutex
	sites []Site
	idx   map[string]Site
}

// LoadRegistry loads the site registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sites file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sites file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}

	fileReg, err := parseSiteRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(fileReg.Sites) == 0 {
		return nil, errors.New("sites file contains no sites entries")
	}

	sites := make([]Site, 0, len(fileReg.Sites))
	for i, entry := range fileReg.Sites {
		site := sanitizeSite(entry)
		if err := validateSite(site); err != nil {
			return nil, fmt.Errorf("sites[%d]: %w", i, err)
		}
		sites = append(sites, site)
	}
	return NewRegistry(sites...)
}

// NewRegistry builds a registry from already-materialized sites.
func NewRegistry(sites ...Site) (*Registry, error) {
	reg := &Registry{
		sites: make([]Site, 0, len(sites)),
		idx:   make(map[string]Site, len(sites)),
	}
	for _, s := range sites {
		if _, exists := reg.idx[s.ID]; exists {
			return nil, fmt.Errorf("duplicate site id %q", s.ID)
		}
		reg.sites = append(reg.sites, s)
		reg.idx[s.ID] = s
	}
	return reg, nil
}

// parseSiteRegistry attempts to decode the sites file content.
func parseSiteRegistry(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg configFile
		if err := d.fn(data, &reg); err == nil {
			return reg, nil
		}
	}

	return configFile{}, errors.New("sites file format not recognized (expected YAML or JSON)")
}

// sanitizeSite trims the entry and converts it into a Site.
func sanitizeSite(e siteEntry) Site {
	site := Site{
		ID:      strings.TrimSpace(e.ID),
		Secret:  turnstile.NewSecret(strings.TrimSpace(e.Secret)),
		Enabled: e.Enabled == nil || *e.Enabled,
	}
	if e.Expect != nil {
		site.ExpectedHostname = strings.ToLower(strings.TrimSpace(e.Expect.Hostname))
		site.ExpectedAction = strings.TrimSpace(e.Expect.Action)
	}
	return site
}

// validateSite checks that required fields are present.
func validateSite(s Site) error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Secret.IsZero() {
		return fmt.Errorf("secret is required for site %q", s.ID)
	}
	return nil
}

// ByID returns the site by id.
func (r *Registry) ByID(id string) (Site, bool) {
	if r == nil {
		return Site{}, false
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return Site{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.idx[id]
	return s, ok
}

// All returns all configured sites.
func (r *Registry) All() []Site {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Site, len(r.sites))
	copy(out, r.sites)
	return out
}

// Enabled returns sites that are enabled.
func (r *Registry) Enabled() []Site {
	all := r.All()
	if len(all) == 0 {
		return nil
	}

	out := make([]Site, 0, len(all))
	for _, s := range all {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

package viewer

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// SiteConfig holds per-host fetch overrides, read from <dir>/<host>.yaml.
// A file for a parent domain applies to its subdomains.
type SiteConfig struct {
	Fetch   FetchMode         `yaml:"fetch"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

type siteConfigStore struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]*SiteConfig
}

func newSiteConfigStore(dir string) *siteConfigStore {
	return &siteConfigStore{
		dir:   dir,
		cache: make(map[string]*SiteConfig),
	}
}

func (s *siteConfigStore) Find(target string) *SiteConfig {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	s.mu.RLock()
	if cfg, ok := s.cache[host]; ok {
		s.mu.RUnlock()
		return cfg
	}
	s.mu.RUnlock()

	var found *SiteConfig
	labels := strings.Split(host, ".")
	for i := 0; i < len(labels) && found == nil; i++ {
		found = s.load(strings.Join(labels[i:], "."))
	}
	s.mu.Lock()
	s.cache[host] = found
	s.mu.Unlock()
	return found
}

func (s *siteConfigStore) load(host string) *SiteConfig {
	if s.dir == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(s.dir, host+".yaml"))
	if err != nil {
		return nil
	}
	var cfg SiteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil
	}
	cfg.Fetch = FetchMode(strings.TrimSpace(strings.ToLower(string(cfg.Fetch))))
	return &cfg
}

package sources

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

/* Loader manages source configuration from sources.yaml
 * Provides in-memory lookup for fast access
 * Without a file every source is accepted with the default status code
 */

// ErrUnknownSource is returned by Resolve for sources missing from a loaded file
var ErrUnknownSource = errors.New("unknown source")

// Config represents the structure of sources.yaml
type Config struct {
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig represents a single source in the YAML file
type SourceConfig struct {
	SourceID      string `yaml:"source_id"`
	StatusCode    int    `yaml:"status_code"` // Default: the loader's default status
	Description   string `yaml:"description"`
	SigningSecret string `yaml:"signing_secret"`
}

// Loader holds the loaded sources
type Loader struct {
	sources       map[string]*Source
	defaultStatus int
	restricted    bool
}

// NewLoader creates a loader answering defaultStatus for sources without their own
func NewLoader(defaultStatus int) *Loader {
	return &Loader{
		sources:       make(map[string]*Source),
		defaultStatus: defaultStatus,
	}
}

// Load reads and parses the sources file; afterwards only listed sources resolve
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading sources file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing sources YAML: %w", err)
	}

	loaded := make(map[string]*Source, len(config.Sources))
	for _, sc := range config.Sources {
		statusCode := sc.StatusCode
		if statusCode == 0 {
			statusCode = l.defaultStatus
		}

		source := &Source{
			SourceID:      sc.SourceID,
			StatusCode:    statusCode,
			Description:   sc.Description,
			SigningSecret: sc.SigningSecret,
		}

		if err := source.Validate(); err != nil {
			return fmt.Errorf("validating source: %w", err)
		}
		if _, dup := loaded[source.SourceID]; dup {
			return fmt.Errorf("validating source: duplicate source_id %s", source.SourceID)
		}

		loaded[source.SourceID] = source
	}

	l.sources = loaded
	l.restricted = true
	return nil
}

// Resolve maps a captured path (relative to /capture) to its source
func (l *Loader) Resolve(path string) (*Source, error) {
	id := SourceID(path)
	if source, exists := l.sources[id]; exists {
		return source, nil
	}
	if l.restricted {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, id)
	}
	return &Source{SourceID: id, StatusCode: l.defaultStatus}, nil
}

// List returns all loaded sources ordered by id
func (l *Loader) List() []*Source {
	sources := make([]*Source, 0, len(l.sources))
	for _, source := range l.sources {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].SourceID < sources[j].SourceID
	})
	return sources
}

// SourceID is the first segment of path, or "" for the bare capture endpoint
func SourceID(path string) string {
	path = strings.TrimPrefix(path, "/")
	id, _, _ := strings.Cut(path, "/")
	return id
}

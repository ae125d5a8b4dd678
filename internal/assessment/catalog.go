package assessment

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

//go:embed definitions/*.yaml
var builtinFS embed.FS

// DefaultPattern matches definition files anywhere below a directory.
const DefaultPattern = "**/*.{yaml,yml}"

// Catalog is the id-indexed table of assessment definitions
type Catalog struct {
	mu          sync.RWMutex
	definitions map[string]*Definition
	logger      *logrus.Logger
}

// NewCatalog creates an empty catalog.
func NewCatalog(logger *logrus.Logger) *Catalog {
	if logger == nil {
		logger = logrus.New()
	}
	return &Catalog{
		definitions: make(map[string]*Definition),
		logger:      logger,
	}
}

// NewDefaultCatalog creates a catalog preloaded with the built-in definitions
// and, when dir is non-empty, every definition file found below dir.
func NewDefaultCatalog(logger *logrus.Logger, dir, pattern string) (*Catalog, error) {
	c := NewCatalog(logger)
	if err := c.LoadFS(builtinFS, "definitions/*.yaml"); err != nil {
		return nil, fmt.Errorf("failed to load built-in assessments: %w", err)
	}
	if dir != "" {
		if err := c.LoadDir(dir, pattern); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register normalizes, validates and adds a definition, replacing any definition with the same id.
func (c *Catalog) Register(def *Definition) error {
	def.Normalize()
	if err := def.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.definitions[def.ID]; exists {
		c.logger.WithField("assessment", def.ID).Info("Replacing assessment definition")
	}
	c.definitions[def.ID] = def
	return nil
}

// Get returns the definition for an id.
func (c *Catalog) Get(id string) (*Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.definitions[id]
	return def, ok
}

// List returns every definition sorted by id.
func (c *Catalog) List() []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Definition, 0, len(c.definitions))
	for _, def := range c.definitions {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadDir registers every definition file below dir matching pattern.
func (c *Catalog) LoadDir(dir, pattern string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("assessment directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("assessment directory %s is not a directory", dir)
	}
	return c.LoadFS(os.DirFS(dir), pattern)
}

// LoadFS registers every definition file in fsys matching pattern.
func (c *Catalog) LoadFS(fsys fs.FS, pattern string) error {
	if pattern == "" {
		pattern = DefaultPattern
	}

	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return fmt.Errorf("invalid assessment pattern %q: %w", pattern, err)
	}
	sort.Strings(matches)

	for _, name := range matches {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}

		def, err := Parse(data)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", name, err)
		}
		if def.ID == "" {
			def.ID = trimExt(path.Base(name))
		}
		if err := c.Register(def); err != nil {
			return fmt.Errorf("invalid assessment %s: %w", name, err)
		}

		c.logger.WithFields(logrus.Fields{
			"assessment": def.ID,
			"file":       name,
			"categories": len(def.Categories),
		}).Debug("Loaded assessment definition")
	}
	return nil
}

// Parse decodes one YAML definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

func trimExt(name string) string {
	return name[:len(name)-len(path.Ext(name))]
}

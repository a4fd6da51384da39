package reports

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"siete/report-portal/report-portal-backend/pkg/security"
)

const (
	// TemplateExt is the extension of compiled report templates.
	TemplateExt = ".jasper"

	// ManifestFile optionally describes the templates in the template directory.
	ManifestFile = "templates.yaml"
)

// TemplateSpec is the manifest entry of one template
type TemplateSpec struct {
	Description string   `yaml:"description"`
	Database    bool     `yaml:"database"`
	Parameters  []string `yaml:"parameters"`
	Required    []string `yaml:"required"`
}

// Allows reports whether the entry accepts the parameter. An entry without a
// parameter list accepts everything.
func (s TemplateSpec) Allows(name string) bool {
	if len(s.Parameters) == 0 {
		return true
	}
	for _, p := range s.Parameters {
		if p == name {
			return true
		}
	}
	return false
}

// Manifest is the parsed templates.yaml
type Manifest struct {
	Templates map[string]TemplateSpec `yaml:"templates"`
}

// Catalog resolves template names against the template directory
type Catalog struct {
	dir    string
	logger *zap.Logger

	mu          sync.Mutex
	manifest    Manifest
	manifestMod time.Time
}

// NewCatalog creates a catalog over dir
func NewCatalog(dir string, logger *zap.Logger) *Catalog {
	return &Catalog{
		dir:    dir,
		logger: logger.Named("catalog"),
	}
}

// Dir returns the template directory.
func (c *Catalog) Dir() string {
	return c.dir
}

// List returns every template in the directory sorted by name
func (c *Catalog) List() ([]TemplateInfo, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template directory: %w", err)
	}

	manifest, err := c.Manifest()
	if err != nil {
		c.logger.Warn("Ignoring unreadable template manifest", zap.Error(err))
	}

	templates := make([]TemplateInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != TemplateExt {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		name := strings.TrimSuffix(entry.Name(), TemplateExt)
		templates = append(templates, TemplateInfo{
			Name:        name,
			File:        entry.Name(),
			Path:        filepath.Join(c.dir, entry.Name()),
			Size:        info.Size(),
			Description: manifest.Templates[name].Description,
		})
	}

	sort.Slice(templates, func(i, j int) bool {
		return templates[i].Name < templates[j].Name
	})
	return templates, nil
}

// Resolve validates name and returns the path of its compiled template.
// ErrNotFound is returned when the file does not exist.
func (c *Catalog) Resolve(name string) (string, error) {
	if err := security.ValidateName("template name", name); err != nil {
		return "", err
	}

	path := filepath.Join(c.dir, name+TemplateExt)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: template %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("failed to stat template %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: template %s", ErrNotFound, name)
	}
	return path, nil
}

// Spec returns the manifest entry for name, if any
func (c *Catalog) Spec(name string) (TemplateSpec, bool, error) {
	manifest, err := c.Manifest()
	if err != nil {
		return TemplateSpec{}, false, err
	}
	spec, ok := manifest.Templates[name]
	return spec, ok, nil
}

// Manifest returns the parsed manifest, reloading it when the file changes.
// A missing manifest is an empty one.
func (c *Catalog) Manifest() (Manifest, error) {
	path := filepath.Join(c.dir, ManifestFile)

	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.manifest = Manifest{}
			c.manifestMod = time.Time{}
			return c.manifest, nil
		}
		return Manifest{}, fmt.Errorf("failed to stat manifest: %w", err)
	}
	if info.ModTime().Equal(c.manifestMod) {
		return c.manifest, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	for name := range manifest.Templates {
		if err := security.ValidateName("template name", name); err != nil {
			return Manifest{}, fmt.Errorf("invalid manifest entry: %v", err)
		}
	}

	c.manifest = manifest
	c.manifestMod = info.ModTime()
	c.logger.Info("Loaded template manifest",
		zap.String("path", path),
		zap.Int("templates", len(manifest.Templates)))
	return manifest, nil
}

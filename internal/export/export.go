// Package export writes a generated site to a filesystem:
//
//	<slug>/site.yaml              manifest
//	<slug>/content/*.json         strategy, sections, layout, copy, seo
//	<slug>/styles/theme.json      style system
//	<slug>/images/manifest.json   generated and placeholder images
//	<slug>/src/...                assembled markup
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/sitegen/internal/site"
)

// ManifestName is the manifest file inside a site directory.
const ManifestName = "site.yaml"

// ErrUnsafePath is returned for a generated file path that would escape the
// site directory.
var ErrUnsafePath = errors.New("export: unsafe path")

// Manifest describes one exported site.
type Manifest struct {
	Name       string        `yaml:"name"`
	Slug       string        `yaml:"slug"`
	ExportedAt string        `yaml:"exportedAt"`
	Degraded   bool          `yaml:"degraded"`
	Partial    bool          `yaml:"partial"`
	Stages     []StageExport `yaml:"stages"`
	Files      []string      `yaml:"files"`
}

// StageExport is the outcome of one stage.
type StageExport struct {
	Stage        site.StageName `yaml:"stage"`
	Status       string         `yaml:"status"`
	UsedFallback bool           `yaml:"usedFallback,omitempty"`
	Error        site.ErrorKind `yaml:"error,omitempty"`
}

// ImageExport is one entry of images/manifest.json.
type ImageExport struct {
	ID          string `json:"id"`
	Placement   string `json:"placement"`
	Path        string `json:"path"`
	URL         string `json:"url"`
	Alt         string `json:"alt"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Placeholder bool   `json:"placeholder"`
}

// Writer writes artifacts to a billy filesystem.
type Writer struct {
	fs  billy.Filesystem
	now func() time.Time
}

// NewWriter creates a Writer on fs.
func NewWriter(fs billy.Filesystem) *Writer {
	return &Writer{fs: fs, now: time.Now}
}

// NewDirWriter creates a Writer rooted at dir on the local disk.
func NewDirWriter(dir string) *Writer {
	return NewWriter(osfs.New(dir))
}

// Write exports a under its slug and returns the manifest written.
// Stages that produced nothing are listed in the manifest but get no file.
func (w *Writer) Write(a *site.SiteArtifact) (*Manifest, error) {
	if a == nil || a.Slug == "" {
		return nil, errors.New("export: artifact has no slug")
	}
	m := &Manifest{
		Name:       a.ProjectName,
		Slug:       a.Slug,
		ExportedAt: w.now().UTC().Format(time.RFC3339),
		Degraded:   a.Degraded,
		Partial:    a.Partial,
	}
	for stage, o := range a.Outcomes {
		m.Stages = append(m.Stages, StageExport{Stage: stage, Status: o.Status, UsedFallback: o.UsedFallback, Error: o.Error})
	}
	slices.SortFunc(m.Stages, func(x, y StageExport) int { return strings.Compare(string(x.Stage), string(y.Stage)) })

	docs := []struct {
		name string
		v    any
		ok   bool
	}{
		{"content/strategy.json", a.Strategy, a.Strategy != nil},
		{"content/sections.json", a.SectionPlan, a.SectionPlan != nil},
		{"content/layout.json", a.Layout, a.Layout != nil},
		{"content/copy.json", a.Copy, a.Copy != nil},
		{"content/seo.json", a.SEO, a.SEO != nil},
		{"styles/theme.json", a.Style, a.Style != nil},
		{"images/manifest.json", images(a.Images), len(a.Images) > 0},
	}
	for _, d := range docs {
		if !d.ok {
			continue
		}
		data, err := json.MarshalIndent(d.v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("export: encode %s: %w", d.name, err)
		}
		if err := w.WriteFile(a.Slug, d.name, append(data, '\n')); err != nil {
			return nil, err
		}
		m.Files = append(m.Files, d.name)
	}

	if a.Code != nil {
		for _, f := range a.Code.Files {
			if err := w.WriteFile(a.Slug, f.Path, []byte(f.Content)); err != nil {
				return nil, err
			}
			m.Files = append(m.Files, path.Clean(f.Path))
		}
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("export: encode manifest: %w", err)
	}
	if err := w.WriteFile(a.Slug, ManifestName, data); err != nil {
		return nil, err
	}
	return m, nil
}

// WriteFile writes one file below the site directory of slug.
func (w *Writer) WriteFile(slug, name string, data []byte) error {
	rel, err := safeJoin(slug, name)
	if err != nil {
		return err
	}
	if err := w.fs.MkdirAll(path.Dir(rel), 0o755); err != nil {
		return fmt.Errorf("export: mkdir %s: %w", path.Dir(rel), err)
	}
	if err := util.WriteFile(w.fs, rel, data, 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", rel, err)
	}
	return nil
}

// ReadManifest loads the manifest of an exported site.
func (w *Writer) ReadManifest(slug string) (*Manifest, error) {
	rel, err := safeJoin(slug, ManifestName)
	if err != nil {
		return nil, err
	}
	data, err := util.ReadFile(w.fs, rel)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("export: %s has no manifest: %w", slug, err)
		}
		return nil, fmt.Errorf("export: read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("export: decode manifest: %w", err)
	}
	return &m, nil
}

func safeJoin(slug, name string) (string, error) {
	if slug == "" || strings.ContainsAny(slug, `/\`) || slug == "." || slug == ".." {
		return "", fmt.Errorf("%w: slug %q", ErrUnsafePath, slug)
	}
	clean := path.Clean("/" + strings.ReplaceAll(name, `\`, "/"))
	if clean == "/" || strings.HasPrefix(name, "/") || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return slug + clean, nil
}

func images(results []site.Result[site.GeneratedImage]) []ImageExport {
	var out []ImageExport
	for _, r := range results {
		if !r.OK() {
			continue
		}
		spec := r.Value.Spec
		out = append(out, ImageExport{
			ID:          spec.ID,
			Placement:   spec.Placement,
			Path:        spec.AssetPath(),
			URL:         r.Value.URL,
			Alt:         spec.Alt,
			Width:       spec.Width,
			Height:      spec.Height,
			Placeholder: r.UsedFallback,
		})
	}
	return out
}

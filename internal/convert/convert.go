// Package convert runs the conversion pipeline: import a source model,
// normalize it into a scene, write it atomically and optionally hand the
// result to a viewer.
package convert

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/tmdl/internal/assets"
	"github.com/Faultbox/tmdl/internal/config"
	"github.com/Faultbox/tmdl/internal/importer"
	"github.com/Faultbox/tmdl/pkg/scene"
)

// Converter converts model files with one configuration. It owns the GRF
// archives named by the configuration until Close.
type Converter struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *importer.Registry
	archives *assets.Manager
}

// New opens the configured archives and prepares the importers.
func New(cfg *config.Config, log *zap.Logger) (*Converter, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Converter{cfg: cfg, log: log, archives: assets.NewManager(log.Named("assets"))}

	for _, p := range cfg.Archives.GRFPaths {
		if err := c.archives.AddArchive(p); err != nil {
			_ = c.Close()
			return nil, err
		}
	}

	c.registry = importer.NewRegistry(importer.Options{
		TextureDirs:     cfg.Textures.Dirs,
		ColorKey:        cfg.Textures.ColorKey,
		RequireTextures: cfg.Textures.Required,
		Log:             log.Named("importer"),
	})
	return c, nil
}

// Close releases the archives.
func (c *Converter) Close() error {
	return c.archives.Close()
}

// Registry returns the importers in use.
func (c *Converter) Registry() *importer.Registry { return c.registry }

// Source returns the file source a model at path is read through and the
// model's name within it. Files below a "data" directory are rooted at that
// directory's parent so "data/texture/..." references resolve; anything else
// is rooted at its own directory. A path missing from disk is looked up in
// the archives.
func (c *Converter) Source(path string) (importer.Source, string) {
	if c.archives.Len() == 0 {
		root, name := dataRoot(path)
		return importer.DirSource{Root: root}, name
	}
	if _, err := os.Stat(path); err != nil {
		return importer.MultiSource{importer.DirSource{Root: "."}, c.archives}, filepath.ToSlash(path)
	}
	root, name := dataRoot(path)
	return importer.MultiSource{importer.DirSource{Root: root}, c.archives}, name
}

// dataRoot splits path at its last "data" directory.
func dataRoot(path string) (root, name string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	parts := strings.Split(filepath.ToSlash(abs), "/")
	for i := len(parts) - 2; i >= 0; i-- {
		if strings.EqualFold(parts[i], "data") {
			root = strings.Join(parts[:i], "/")
			if root == "" {
				root = "/"
			}
			return filepath.FromSlash(root), strings.Join(parts[i:], "/")
		}
	}
	return filepath.Dir(abs), filepath.Base(abs)
}

// Load imports and normalizes the model at path.
func (c *Converter) Load(path string) (*scene.Scene, error) {
	src, name := c.Source(path)
	res, err := c.registry.Import(src, name)
	if err != nil {
		return nil, err
	}
	return Normalize(res, NormalizeOptions{
		BoneNodes:   c.cfg.Convert.BoneNodes,
		DebugVertex: c.cfg.Convert.DebugVertex,
	}, c.log)
}

// OutputPath returns where the conversion of src lands. dest may be a file,
// an existing directory or empty for the configured output directory.
func (c *Converter) OutputPath(src, dest string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + c.cfg.Convert.Extension
	if dest == "" {
		return filepath.Join(c.cfg.Convert.OutputDir, base)
	}
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		return filepath.Join(dest, base)
	}
	if strings.HasSuffix(dest, "/") || strings.HasSuffix(dest, string(filepath.Separator)) {
		return filepath.Join(dest, base)
	}
	return dest
}

// Convert converts src and writes the result, returning the output path.
// The viewer is launched after a successful write when enabled.
func (c *Converter) Convert(src, dest string) (string, error) {
	out := c.OutputPath(src, dest)
	log := c.log.With(zap.String("source", src))

	s, err := c.Load(src)
	if err != nil {
		return "", errors.Wrapf(err, "converting %s", src)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", errors.Wrap(err, "creating output directory")
	}
	n, err := WriteFile(out, s)
	if err != nil {
		return "", err
	}

	log.Info("converted",
		zap.String("output", out),
		zap.Int64("bytes", n),
		zap.Int("models", len(s.Models)),
		zap.Int("animations", animationCount(s)))

	if c.cfg.Viewer.Enabled {
		c.launchViewer(out)
	}
	return out, nil
}

func animationCount(s *scene.Scene) int {
	n := 0
	for _, m := range s.Models {
		n += len(m.Animations)
	}
	return n
}

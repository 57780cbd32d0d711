package convert

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Result holds the outcome of converting one file in a batch.
type Result struct {
	Source string
	Output string
	Err    error
}

// Batch converts every supported model under srcDir into destDir, mirroring
// the directory layout. Subdirectories are visited only when the
// configuration asks for it. Files are converted one at a time; a failure is
// recorded and the batch moves on. The returned error combines every
// failure.
func (c *Converter) Batch(srcDir, destDir string) ([]Result, error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return nil, errors.Wrap(err, "reading source directory")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", srcDir)
	}
	if destDir == "" {
		destDir = c.cfg.Convert.OutputDir
	}

	var sources []string
	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != srcDir && !c.cfg.Convert.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if c.registry.Supported(path) {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scanning source directory")
	}

	c.log.Info("batch started", zap.String("source", srcDir), zap.Int("files", len(sources)))

	results := make([]Result, 0, len(sources))
	var errs error
	for _, path := range sources {
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		dest := filepath.Join(destDir, strings.TrimSuffix(rel, filepath.Ext(rel))+c.cfg.Convert.Extension)

		out, err := c.Convert(path, dest)
		results = append(results, Result{Source: path, Output: out, Err: err})
		if err != nil {
			c.log.Error("conversion failed", zap.String("source", path), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}

	failed := len(multierr.Errors(errs))
	c.log.Info("batch finished",
		zap.Int("converted", len(results)-failed),
		zap.Int("failed", failed))
	return results, errs
}

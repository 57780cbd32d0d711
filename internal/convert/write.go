package convert

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/tmdl/pkg/scene"
	"github.com/Faultbox/tmdl/pkg/tmdl"
)

// WriteFile encodes s into a temporary file next to path and renames it
// over path once everything is written and synced. On failure path is left
// untouched. It returns the number of bytes written.
func WriteFile(path string, s *scene.Scene) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, errors.Wrap(err, "creating temporary file")
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := tmdl.NewWriter(tmp)
	if err := w.WriteScene(s); err != nil {
		return 0, errors.Wrapf(err, "writing %s", path)
	}
	if err := tmp.Sync(); err != nil {
		return 0, errors.Wrapf(err, "syncing %s", path)
	}
	if err := tmp.Close(); err != nil {
		return 0, errors.Wrapf(err, "closing %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		committed = true
		return 0, errors.Wrapf(err, "renaming into %s", path)
	}
	committed = true
	return w.Written(), nil
}

// viewerCommand expands the configured viewer arguments for file.
func viewerCommand(command string, args []string, file string) *exec.Cmd {
	expanded := make([]string, len(args))
	for i, a := range args {
		expanded[i] = strings.ReplaceAll(a, "{file}", file)
	}
	return exec.Command(command, expanded...)
}

// launchViewer starts the viewer without waiting for it. Failures are only
// logged; the conversion already succeeded.
func (c *Converter) launchViewer(file string) {
	v := c.cfg.Viewer
	if v.Command == "" {
		c.log.Warn("viewer enabled without a command")
		return
	}
	cmd := viewerCommand(v.Command, v.Args, file)
	if err := cmd.Start(); err != nil {
		c.log.Warn("could not start viewer", zap.String("command", v.Command), zap.Error(err))
		return
	}
	c.log.Debug("viewer started", zap.String("command", v.Command), zap.Int("pid", cmd.Process.Pid))
	_ = cmd.Process.Release()
}

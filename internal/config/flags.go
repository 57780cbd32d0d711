package config

import (
	"flag"
	"strings"
)

// Flags holds the command-line overrides shared by the converting commands.
type Flags struct {
	Config      string
	Debug       bool
	OutputDir   string
	GRF         stringList
	Viewer      string
	BoneNodes   bool
	DebugVertex bool
}

// RegisterFlags defines the shared flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.OutputDir, "out", "", "Output directory")
	fs.Var(&f.GRF, "grf", "GRF archive to read from (repeatable)")
	fs.StringVar(&f.Viewer, "viewer", "", "Viewer command to launch after converting")
	fs.BoolVar(&f.BoneNodes, "bone-nodes", false, "Keep bone nodes in the scene tree")
	fs.BoolVar(&f.DebugVertex, "debug-vertex", false, "Log every vertex with its skin data")
	return f
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.OutputDir != "" {
		cfg.Convert.OutputDir = f.OutputDir
	}
	if len(f.GRF) > 0 {
		cfg.Archives.GRFPaths = append([]string(nil), f.GRF...)
	}
	if f.Viewer != "" {
		cfg.Viewer.Enabled = true
		cfg.Viewer.Command = f.Viewer
	}
	if f.BoneNodes {
		cfg.Convert.BoneNodes = true
	}
	if f.DebugVertex {
		cfg.Convert.DebugVertex = true
	}
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

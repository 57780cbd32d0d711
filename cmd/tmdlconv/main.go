// tmdlconv converts Ragnarok Online, MU Online and glTF models into TMDL
// scenes.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"

	"github.com/Faultbox/tmdl/internal/config"
	"github.com/Faultbox/tmdl/internal/convert"
	"github.com/Faultbox/tmdl/internal/logger"
	"github.com/Faultbox/tmdl/pkg/grf"
	"github.com/Faultbox/tmdl/pkg/tmdl"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "convert", "Single":
		cmdConvert(args)
	case "batch", "Batch":
		cmdBatch(args)
	case "inspect":
		cmdInspect(args)
	case "textures":
		cmdTextures(args)
	case "grf":
		cmdGRF(args)
	case "config":
		cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tmdlconv - model to TMDL scene converter

Usage:
  tmdlconv <command> [options]

Commands:
  convert <source> [dest]            Convert one model (.rsm, .bmd, .gltf, .glb)
  batch <srcdir> [destdir]           Convert every supported model in a directory
  inspect <file.tmdl>                Summarize a converted scene
  textures <source> <outdir>         Export a model's textures as WebP
  grf info|list|search|extract ...   Browse a GRF archive
  config init [-force] [path]        Write the default config file

Converting commands accept:
  -config <file>   Config file (default ./tmdl.yaml, then the user config dir)
  -out <dir>       Output directory when no destination is given
  -grf <file>      GRF archive to read from, repeatable
  -viewer <cmd>    Launch a viewer on the converted file
  -bone-nodes      Keep bone nodes in the scene tree
  -debug           Enable debug logging
  -debug-vertex    Log every vertex with its skin data

Examples:
  tmdlconv convert data/model/prontera/fountain.rsm out/
  tmdlconv convert -grf data.grf data/model/prontera/fountain.rsm
  tmdlconv batch -recursive models/ out/
  tmdlconv inspect -dump out/fountain.tmdl
  tmdlconv Single hero.gltf hero.tmdl`)
}

// setup loads the configuration, installs the logger and opens a converter.
func setup(flags *config.Flags) (*config.Config, *convert.Converter) {
	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.LogFile,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid logging config: %v\n", err)
		os.Exit(1)
	}

	c, err := convert.New(cfg, logger.Named("convert"))
	if err != nil {
		fail(err)
	}
	return cfg, c
}

// fail logs err, flushes the logger and exits.
func fail(err error) {
	logger.Error("failed", zap.Error(err))
	logger.Sync()
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func cmdConvert(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: tmdlconv convert [options] <source> [dest]")
		os.Exit(1)
	}

	_, c := setup(flags)
	defer c.Close()

	out, err := c.Convert(fs.Arg(0), fs.Arg(1))
	if err != nil {
		c.Close()
		fail(err)
	}
	logger.Sync()
	fmt.Println(out)
}

func cmdBatch(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	recursive := fs.Bool("recursive", false, "Descend into subdirectories")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: tmdlconv batch [options] <srcdir> [destdir]")
		os.Exit(1)
	}

	cfg, c := setup(flags)
	defer c.Close()
	if *recursive {
		cfg.Convert.Recursive = true
	}

	results, err := c.Batch(fs.Arg(0), fs.Arg(1))
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", r.Source, r.Err)
			continue
		}
		fmt.Printf("ok   %s -> %s\n", r.Source, r.Output)
	}
	fmt.Fprintf(os.Stderr, "\n%d converted, %d failed\n", len(results)-failed, failed)
	logger.Sync()
	if err != nil {
		c.Close()
		os.Exit(1)
	}
}

func cmdConfig(args []string) {
	if len(args) < 1 || args[0] != "init" {
		fmt.Fprintln(os.Stderr, "Usage: tmdlconv config init [-force] [path]")
		os.Exit(1)
	}

	fs := flag.NewFlagSet("config init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing config file")
	fs.Parse(args[1:])

	path, err := config.WriteDefault(fs.Arg(0), *force)
	if errors.Is(err, config.ErrExists) {
		fmt.Fprintf(os.Stderr, "Error: %s exists, use -force to overwrite\n", path)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(path)
}

func cmdInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dump := fs.Bool("dump", false, "Dump the whole decoded scene")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: tmdlconv inspect [-dump] <file.tmdl>")
		os.Exit(1)
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	s, err := tmdl.Decode(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *dump {
		cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
		cfg.Dump(s)
		return
	}

	fmt.Printf("Scene:  %s\n", s.Name)
	fmt.Printf("Nodes:  %d\n", s.Tree.Len())
	fmt.Printf("Models: %d\n", len(s.Models))
	for _, m := range s.Models {
		fmt.Println()
		fmt.Printf("Model %s\n", m.Name)
		fmt.Printf("  vertices   %d\n", m.VertexCount())
		fmt.Printf("  meshes     %d\n", len(m.Meshes))
		for _, mesh := range m.Meshes {
			fmt.Printf("    %-24s %6d vertices %6d indices  material %d\n",
				mesh.Name, mesh.VertexCount(), len(mesh.Indices), mesh.MaterialIndex)
		}
		fmt.Printf("  textures   %d\n", len(m.Textures))
		for _, t := range m.Textures {
			fmt.Printf("    %-24s %dx%d\n", t.Name, t.Width, t.Height)
		}
		fmt.Printf("  materials  %d\n", len(m.Materials))
		fmt.Printf("  bones      %d\n", m.Skeleton.Len())
		fmt.Printf("  animations %d\n", len(m.Animations))
		for _, a := range m.Animations {
			fmt.Printf("    %-24s %8.1f ticks @ %d/s  %d channels\n",
				a.Name, a.Duration, a.TicksPerSecond, len(a.Channels()))
		}
	}
}

func cmdTextures(args []string) {
	fs := flag.NewFlagSet("textures", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: tmdlconv textures [options] <source> <outdir>")
		os.Exit(1)
	}

	_, c := setup(flags)
	defer c.Close()

	s, err := c.Load(fs.Arg(0))
	if err != nil {
		c.Close()
		fail(err)
	}
	paths, err := c.ExportTextures(s, fs.Arg(1))
	for _, p := range paths {
		fmt.Println(p)
	}
	if err != nil {
		c.Close()
		fail(err)
	}
	logger.Sync()
}

func cmdGRF(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: tmdlconv grf info|list|search|extract <file.grf> ...")
		os.Exit(1)
	}

	switch args[0] {
	case "info":
		grfInfo(args[1:])
	case "list", "ls":
		grfList(args[1:])
	case "search", "find":
		grfSearch(args[1:])
	case "extract", "x":
		grfExtract(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown grf command: %s\n", args[0])
		os.Exit(1)
	}
}

func openArchive(path string) *grf.Archive {
	archive, err := grf.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return archive
}

func grfInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: tmdlconv grf info <file.grf>")
		os.Exit(1)
	}

	archive := openArchive(args[0])
	defer archive.Close()

	files := archive.List()
	extCount := make(map[string]int)
	models := 0
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f))
		if ext == "" {
			ext = "(no ext)"
		}
		extCount[ext]++
		if ext == ".rsm" || ext == ".bmd" {
			models++
		}
	}

	h := archive.Header()
	fmt.Printf("Archive: %s\n", args[0])
	fmt.Printf("Version: 0x%X\n", h.Version)
	fmt.Printf("Files:   %d\n", len(files))
	fmt.Printf("Models:  %d\n", models)
	fmt.Println()
	fmt.Println("Files by type:")

	type extStat struct {
		ext   string
		count int
	}
	var stats []extStat
	for ext, count := range extCount {
		stats = append(stats, extStat{ext, count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].count != stats[j].count {
			return stats[i].count > stats[j].count
		}
		return stats[i].ext < stats[j].ext
	})

	for _, s := range stats {
		fmt.Printf("  %-10s %d\n", s.ext, s.count)
	}
}

func grfList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("n", 0, "Limit output to N files (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: tmdlconv grf list <file.grf> [pattern]")
		os.Exit(1)
	}

	archive := openArchive(fs.Arg(0))
	defer archive.Close()

	files := archive.List()
	if fs.NArg() > 1 {
		var err error
		files, err = archive.Search(fs.Arg(1))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	for i, f := range files {
		if *limit > 0 && i >= *limit {
			break
		}
		fmt.Println(f)
	}
	if fs.NArg() > 1 {
		fmt.Fprintf(os.Stderr, "\n(%d files matched)\n", len(files))
	}
}

func grfSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	limit := fs.Int("n", 50, "Limit results (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: tmdlconv grf search <file.grf> <pattern>")
		os.Exit(1)
	}

	archive := openArchive(fs.Arg(0))
	defer archive.Close()

	files, err := archive.Search(fs.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "No files found")
		return
	}

	for i, f := range files {
		if *limit > 0 && i >= *limit {
			fmt.Fprintf(os.Stderr, "\n(showing first %d matches, use -n 0 for all)\n", *limit)
			return
		}
		fmt.Println(f)
	}
	fmt.Fprintf(os.Stderr, "\n(%d files found)\n", len(files))
}

func grfExtract(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: tmdlconv grf extract <file.grf> <path|pattern> [output_dir]")
		os.Exit(1)
	}

	outputDir := "."
	if fs.NArg() > 2 {
		outputDir = fs.Arg(2)
	}

	archive := openArchive(fs.Arg(0))
	defer archive.Close()

	files := []string{fs.Arg(1)}
	if strings.ContainsAny(fs.Arg(1), "*?[") {
		var err error
		if files, err = archive.Search(fs.Arg(1)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	extracted := 0
	for _, f := range files {
		data, err := archive.Read(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", f, err)
			continue
		}

		// archive paths keep their directory structure
		outputPath := filepath.Join(outputDir, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
			continue
		}
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", outputPath, err)
			continue
		}

		fmt.Printf("Extracted: %s (%d bytes)\n", outputPath, len(data))
		extracted++
	}

	fmt.Fprintf(os.Stderr, "\nExtracted %d files\n", extracted)
}

// Package config handles converter configuration loading and management.
package config

// FileName is the config file looked up in the working directory and the
// user config directory.
const FileName = "tmdl.yaml"

// Config holds all converter settings.
type Config struct {
	Convert  ConvertConfig  `yaml:"convert"`
	Textures TexturesConfig `yaml:"textures"`
	Archives ArchivesConfig `yaml:"archives"`
	Viewer   ViewerConfig   `yaml:"viewer"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ConvertConfig controls how scenes are normalized and written.
type ConvertConfig struct {
	OutputDir string `yaml:"output_dir"` // Used when no destination is given
	Extension string `yaml:"extension"`  // Output file extension

	// BoneNodes keeps a rebuilt bone subtree under the armature node instead
	// of pruning the nodes that became bones.
	BoneNodes bool `yaml:"bone_nodes"`

	// DebugVertex logs every vertex with its resolved skin data.
	DebugVertex bool `yaml:"debug_vertex"`

	Recursive bool `yaml:"recursive"` // Batch mode descends into subdirectories
}

// TexturesConfig controls texture lookup and decoding.
type TexturesConfig struct {
	Dirs     []string `yaml:"dirs"`      // Texture directories relative to a source
	ColorKey bool     `yaml:"color_key"` // Magenta becomes transparent
	Required bool     `yaml:"required"`  // Fail instead of skipping undecodable textures
}

// ArchivesConfig lists GRF archives searched after the filesystem.
type ArchivesConfig struct {
	GRFPaths []string `yaml:"grf_paths"`
}

// ViewerConfig describes an external viewer launched after a conversion.
type ViewerConfig struct {
	Enabled bool     `yaml:"enabled"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"` // "{file}" is replaced by the output path
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Convert: ConvertConfig{
			OutputDir: ".",
			Extension: ".tmdl",
		},
		Textures: TexturesConfig{
			Dirs:     []string{"data/texture", "texture", "."},
			ColorKey: true,
		},
		Viewer: ViewerConfig{
			Args: []string{"{file}"},
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}

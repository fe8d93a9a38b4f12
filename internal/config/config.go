package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	compression "github.com/deploymenttheory/go-rom-uf2/internal/common/compressionutil"
	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
	"github.com/deploymenttheory/go-rom-uf2/internal/common/fsutil"
	"github.com/deploymenttheory/go-rom-uf2/internal/common/osutil"
	"github.com/deploymenttheory/go-rom-uf2/internal/dedup"
	"github.com/deploymenttheory/go-rom-uf2/internal/manifest"
	"github.com/deploymenttheory/go-rom-uf2/internal/picocart"
	"github.com/deploymenttheory/go-rom-uf2/internal/uf2"
)

const (
	// AppName is the application name used for config files and directories
	AppName = "rom2uf2"

	// EnvPrefix is the prefix for environment variables
	EnvPrefix = "ROM2UF2"
)

// BuildConfig holds the image build settings
type BuildConfig struct {
	Compress    bool   `mapstructure:"compress"`
	ChunkSize   int    `mapstructure:"chunk_size"`
	Family      string `mapstructure:"family"`
	LoadAddress uint32 `mapstructure:"load_address"`
	FlashBase   uint32 `mapstructure:"flash_base"`
	FlashSize   uint32 `mapstructure:"flash_size"`
	Remainder   string `mapstructure:"remainder"`   // pad, reject or truncate
	StrictFlash bool   `mapstructure:"strict_flash"` // fail instead of warn on flash overflow
	OutputDir   string `mapstructure:"output_dir"`  // empty means next to the ROM
	Archive     string `mapstructure:"archive"`     // none, gzip, bzip2, xz, zstd, lz4
	Manifest    string `mapstructure:"manifest"`    // empty, yaml, json or plist
}

// AppConfig holds the application configuration
type AppConfig struct {
	// Core settings
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	Build BuildConfig `mapstructure:"build"`
}

// Global variables
var (
	// Global configuration instance
	Instance AppConfig

	// Status indicators
	ConfigLoaded bool
	ConfigFile   string

	// Viper instance
	v *viper.Viper

	// Ensure thread safety
	initOnce sync.Once
)

// Initialize sets up the configuration system
func Initialize(cfgFile string) error {
	var err error

	initOnce.Do(func() {
		v = viper.New()
		setDefaults(v)

		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		} else {
			v.SetConfigName(AppName)
			v.SetConfigType("yaml")
			addSearchPaths(v)
		}

		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		v.AutomaticEnv()

		if readErr := v.ReadInConfig(); readErr != nil {
			if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
				// Only capture error if the config file was found but couldn't be read
				err = fmt.Errorf("error reading config file: %w", readErr)
				return
			}
			ConfigLoaded = false
			ConfigFile = ""
		} else {
			ConfigLoaded = true
			ConfigFile = v.ConfigFileUsed()
		}

		if unmarshalErr := v.Unmarshal(&Instance); unmarshalErr != nil {
			err = fmt.Errorf("error parsing config: %w", unmarshalErr)
			return
		}

		ensureDirectories()
	})

	return err
}

// Viper returns the underlying viper instance so flags can be bound to it.
// It is nil before Initialize.
func Viper() *viper.Viper {
	return v
}

// Reset discards the loaded configuration so Initialize can run again
func Reset() {
	initOnce = sync.Once{}
	v = nil
	Instance = AppConfig{}
	ConfigLoaded = false
	ConfigFile = ""
}

// Reload re-reads bound flags and environment into Instance
func Reload() error {
	if v == nil {
		return fmt.Errorf("%w: configuration not initialized", commonerrors.ErrConfigInvalid)
	}
	if err := v.Unmarshal(&Instance); err != nil {
		return fmt.Errorf("error parsing config: %w", err)
	}
	return nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("log_format", "human")

	logDir, err := fsutil.GetLogDir(AppName)
	if err == nil {
		v.SetDefault("log_file", filepath.Join(logDir, AppName+".log"))
	} else {
		v.SetDefault("log_file", "")
	}

	defaults := picocart.DefaultOptions()
	v.SetDefault("build.compress", defaults.Compress)
	v.SetDefault("build.chunk_size", defaults.ChunkSize)
	v.SetDefault("build.family", defaults.Family)
	v.SetDefault("build.load_address", defaults.LoadAddress)
	v.SetDefault("build.flash_base", defaults.FlashBase)
	v.SetDefault("build.flash_size", defaults.FlashSize)
	v.SetDefault("build.remainder", defaults.Remainder.String())
	v.SetDefault("build.strict_flash", defaults.StrictFlash)
	v.SetDefault("build.output_dir", "")
	v.SetDefault("build.archive", compression.FormatNone.String())
	v.SetDefault("build.manifest", "")
}

// addSearchPaths adds config search paths
func addSearchPaths(v *viper.Viper) {
	v.AddConfigPath(".")

	if osutil.IsDevEnvironment() {
		if configDir, err := fsutil.GetConfigDir(AppName); err == nil {
			v.AddConfigPath(configDir)
		}
		return
	}

	if osutil.IsRunningInPipeline() {
		v.AddConfigPath("/etc/" + AppName)
		return
	}

	if configDir, err := fsutil.GetConfigDir(AppName); err == nil {
		v.AddConfigPath(configDir)
	}
	if systemConfigDir, err := fsutil.GetSystemConfigDir(AppName); err == nil {
		v.AddConfigPath(systemConfigDir)
	}
}

// ensureDirectories creates necessary directories based on configuration
func ensureDirectories() {
	if osutil.IsRunningInPipeline() && os.Getenv("CREATE_DIRS") != "true" {
		return
	}
	if Instance.LogFile != "" {
		_ = fsutil.CreateDirIfNotExists(filepath.Dir(Instance.LogFile))
	}
	if Instance.Build.OutputDir != "" {
		_ = fsutil.CreateDirIfNotExists(Instance.Build.OutputDir)
	}
}

// Options converts the build settings into validated pipeline options
func (b BuildConfig) Options() (picocart.Options, error) {
	remainder, err := dedup.ParseRemainderPolicy(b.Remainder)
	if err != nil {
		return picocart.Options{}, fmt.Errorf("%w: build.remainder: %v", commonerrors.ErrConfigInvalid, err)
	}

	opts := picocart.Options{
		Compress:    b.Compress,
		ChunkSize:   b.ChunkSize,
		Family:      b.Family,
		LoadAddress: b.LoadAddress,
		FlashBase:   b.FlashBase,
		FlashSize:   b.FlashSize,
		Remainder:   remainder,
		StrictFlash: b.StrictFlash,
	}
	if _, err := opts.Validate(); err != nil {
		return picocart.Options{}, fmt.Errorf("%w: build: %v", commonerrors.ErrConfigInvalid, err)
	}
	return opts, nil
}

// ArchiveFormat parses build.archive
func (b BuildConfig) ArchiveFormat() (compression.Format, error) {
	f, err := compression.ParseFormat(b.Archive)
	if err != nil {
		return compression.FormatNone, fmt.Errorf("%w: build.archive: %v", commonerrors.ErrConfigInvalid, err)
	}
	return f, nil
}

// ManifestFormat parses build.manifest; ok is false when manifests are off
func (b BuildConfig) ManifestFormat() (manifest.Format, bool, error) {
	if b.Manifest == "" || b.Manifest == "none" {
		return "", false, nil
	}
	f, err := manifest.ParseFormat(b.Manifest)
	if err != nil {
		return "", false, fmt.Errorf("%w: build.manifest: %v", commonerrors.ErrConfigInvalid, err)
	}
	return f, true, nil
}

// BuildOptions returns the validated pipeline options of the loaded configuration
func BuildOptions() (picocart.Options, error) {
	return Instance.Build.Options()
}

// FamilyHelp lists the board families for flag help text
func FamilyHelp() string {
	return strings.Join(uf2.FamilyNames(), ", ")
}

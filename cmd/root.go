package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/deploymenttheory/go-rom-uf2/internal/composition"
	"github.com/deploymenttheory/go-rom-uf2/internal/config"
	"github.com/deploymenttheory/go-rom-uf2/internal/logger"
)

// flagKeys maps CLI flag names to the configuration keys they override
var flagKeys = map[string]string{
	"debug":        "debug",
	"log-format":   "log_format",
	"log-file":     "log_file",
	"compress":     "build.compress",
	"chunk-size":   "build.chunk_size",
	"family":       "build.family",
	"load-address": "build.load_address",
	"flash-base":   "build.flash_base",
	"flash-size":   "build.flash_size",
	"remainder":    "build.remainder",
	"strict-flash": "build.strict_flash",
	"output-dir":   "build.output_dir",
	"archive":      "build.archive",
	"manifest":     "build.manifest",
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	var cfgFile string
	var workflowFile string

	rootCmd := &cobra.Command{
		Use:   config.AppName,
		Short: "Convert N64 ROMs into PicoCart64 UF2 images",
		Long: `rom2uf2 turns N64 ROM images into UF2 firmware images that a
PicoCart64 board flashes over USB mass storage.

Images can be written uncompressed or with chunk deduplication, which
stores every distinct chunk of the ROM once together with a mapping
table the firmware reads back at boot.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initialize(cmd, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if workflowFile != "" {
				return executeWorkflow(cmd.Context(), workflowFile)
			}
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is search in standard locations)")
	rootCmd.Flags().StringVarP(&workflowFile, "workflow", "w", "", "workflow file to execute")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-format", "human", "Log format: json or human")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this file")

	rootCmd.AddCommand(
		newBuildCmd(),
		newChecksumCmd(),
		newInspectCmd(),
		newExtractCmd(),
		newFamiliesCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command with args
func Execute(ctx context.Context, args []string) error {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// initialize loads the configuration, lets changed flags override it and
// starts the logger.
func initialize(cmd *cobra.Command, cfgFile string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return err
	}

	v := config.Viper()
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
			bindErr = v.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return bindErr
	}
	if err := config.Reload(); err != nil {
		return err
	}

	if err := logger.InitLogger(logger.LoggerConfig{
		Debug:     config.Instance.Debug,
		LogFormat: config.Instance.LogFormat,
		LogFile:   config.Instance.LogFile,
	}); err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	if config.ConfigLoaded {
		logger.LogDebug("configuration loaded", map[string]interface{}{"file": config.ConfigFile})
	}
	return nil
}

// executeWorkflow loads and runs a workflow file
func executeWorkflow(ctx context.Context, file string) error {
	logger.LogInfo("Executing workflow", map[string]interface{}{
		"file": file,
	})

	workflow, err := composition.LoadWorkflow(file)
	if err != nil {
		return fmt.Errorf("failed to load workflow: %w", err)
	}

	if errs := composition.ValidateWorkflow(workflow); len(errs) > 0 {
		for _, err := range errs {
			logger.LogError("Workflow validation error", err, nil)
		}
		return fmt.Errorf("workflow validation failed with %d errors", len(errs))
	}

	return composition.ExecuteWorkflow(ctx, workflow)
}

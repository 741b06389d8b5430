package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/menta2k/densesift"
	"github.com/menta2k/densesift/internal/cli"
	"github.com/menta2k/densesift/internal/config"
	"github.com/menta2k/densesift/internal/logging"
	"github.com/menta2k/densesift/pkg/detection"
	"github.com/menta2k/densesift/pkg/normalizer"
	"github.com/menta2k/densesift/pkg/opencv"
	"github.com/menta2k/densesift/pkg/processing"
	"github.com/menta2k/densesift/pkg/sampling"
)

type options struct {
	configPath string
	prefix     string
	verbose    bool
	logFile    string
}

// NewRootCmd creates the densesift command.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "densesift <image> <features> [count] [sampling 0|1] [resize 0|1]",
		Short: "Extract an exact number of densely sampled SIFT features",
		Long: `densesift places exactly <count> keypoints on a regular grid over the image,
computes a SIFT descriptor for each and writes them to <features> as
tab-separated text. A copy of the image with the keypoints drawn on it is
written to <prefix>_sift.png.

sampling: 0 = difference of Gaussians (not available), 1 = dense grid
resize:   1 = stretch the image to a square before sampling`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			return cli.CheckArgCount(args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file (yaml or json)")
	cmd.Flags().StringVarP(&opts.prefix, "prefix", "p", "", "overlay image prefix (default from config, \"result\")")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "also write logs to this rotating file")
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &cli.ExitError{Code: cli.ExitUsage, Err: err}
	})

	return cmd
}

// Execute runs the root command.
func Execute() {
	_ = godotenv.Load()

	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "densesift:", err)
		if cli.IsUsageError(err) {
			fmt.Fprintln(os.Stderr, cli.Usage)
		}
		os.Exit(cli.ExitCode(err))
	}
}

func extractorConfig(cfg *config.Config) (densesift.Config, error) {
	filter, err := normalizer.FilterByName(cfg.Sampling.Filter)
	if err != nil {
		return densesift.Config{}, err
	}

	ec := densesift.DefaultConfig()
	ec.Processing = processing.Config{
		DefaultQuality: cfg.Output.Quality,
		MinImageSize:   1,
	}
	ec.Normalizer = normalizer.Config{
		Resize: cfg.Sampling.Resize,
		Filter: filter,
	}
	ec.Detector = detection.Config{
		Levels:    cfg.Detector.Levels,
		ScaleMul:  cfg.Detector.ScaleMul,
		VaryStep:  cfg.Detector.VaryStep,
		VaryBound: cfg.Detector.VaryBound,
	}
	ec.Sampling = sampling.Config{
		MaxIterations:  cfg.Sampling.MaxIterations,
		IterationSlack: cfg.Sampling.IterationSlack,
	}
	return ec, nil
}

func run(cmd *cobra.Command, args []string, opts *options) error {
	cfg, err := cli.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if err := cli.ApplyArgs(cfg, args); err != nil {
		return err
	}
	if opts.prefix != "" {
		cfg.Output.Prefix = opts.prefix
	}
	if level := os.Getenv(cli.EnvLogLevel); level != "" {
		cfg.Log.Level = level
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	if opts.logFile != "" {
		cfg.Log.File = opts.logFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return err
	}

	mode, err := densesift.ParseSamplingMode(cfg.Sampling.Mode)
	if err != nil {
		return cli.UsageErrorf("%v", err)
	}

	ec, err := extractorConfig(cfg)
	if err != nil {
		return err
	}

	engine, err := opencv.Open(opencv.Config{Algorithm: cfg.Detector.Algorithm})
	if err != nil {
		return err
	}
	extractor := densesift.NewWithConfig(engine, ec)
	defer extractor.Close()
	extractor.SetLogger(logger)

	cli.WarnIfNotImage(logger, args[0])
	session, err := extractor.Open(args[0])
	if err != nil {
		return err
	}

	ext, err := session.Extract(mode, cfg.Sampling.FeatureCount)
	if err != nil {
		return err
	}

	if err := session.SaveFeatures(args[1]); err != nil {
		return err
	}
	overlay, err := session.SaveImage(cfg.Output.Prefix)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		logging.SessionIDKey: session.ID(),
		"features":           len(ext.Keypoints),
		"iterations":         ext.Iterations,
		"output":             cli.DescribeOutput(args[1]),
		"overlay":            cli.DescribeOutput(overlay),
	}).Info("done")
	fmt.Fprintf(cmd.OutOrStdout(), "%d features written to %s, overlay %s\n", len(ext.Keypoints), args[1], overlay)
	return nil
}

// getVersion returns the module version from build info
func getVersion() string {
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		if v := buildInfo.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return densesift.Version
}

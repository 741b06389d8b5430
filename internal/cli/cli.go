// Package cli holds the argument handling of the densesift command that
// does not need OpenCV.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/densesift"
	"github.com/menta2k/densesift/internal/config"
	"github.com/menta2k/densesift/internal/utils"
	"github.com/menta2k/densesift/pkg/types"
)

// Exit codes
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitUsage      = 2
	ExitExtraction = 3
)

// Environment variables read after .env is loaded
const (
	EnvConfig   = "DENSESIFT_CONFIG"
	EnvLogLevel = "DENSESIFT_LOG_LEVEL"
)

// Usage is printed after usage errors
const Usage = "usage: densesift <image> <features> [count] [sampling 0|1] [resize 0|1]"

// ExitError carries the process exit code for err
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// UsageErrorf returns an error that exits with ExitUsage
func UsageErrorf(format string, args ...any) error {
	return &ExitError{Code: ExitUsage, Err: fmt.Errorf(format, args...)}
}

// IsUsageError reports whether err should be followed by the usage line
func IsUsageError(err error) bool {
	return ExitCode(err) == ExitUsage
}

// ExitCode maps an error returned by the command to an exit status
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	if errors.Is(err, types.ErrUnsatisfiableGrid) || errors.Is(err, types.ErrConvergenceTimeout) {
		return ExitExtraction
	}
	return ExitFailure
}

// CheckArgCount accepts two to five positional arguments
func CheckArgCount(args []string) error {
	if len(args) < 2 || len(args) > 5 {
		return UsageErrorf("expected 2 to 5 arguments, got %d", len(args))
	}
	return nil
}

// ApplyArgs overrides the config with the optional positional arguments
// count, sampling mode and resize flag
func ApplyArgs(cfg *config.Config, args []string) error {
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n <= 0 {
			return UsageErrorf("invalid feature count %q", args[2])
		}
		cfg.Sampling.FeatureCount = n
	}
	if len(args) > 3 {
		if args[3] != "0" && args[3] != "1" {
			return UsageErrorf("invalid sampling mode %q: expected 0 (dog) or 1 (dense)", args[3])
		}
		mode, err := densesift.ParseSamplingMode(args[3])
		if err != nil {
			return UsageErrorf("%v", err)
		}
		cfg.Sampling.Mode = mode.String()
	}
	if len(args) > 4 {
		switch args[4] {
		case "0":
			cfg.Sampling.Resize = false
		case "1":
			cfg.Sampling.Resize = true
		default:
			return UsageErrorf("invalid resize flag %q: expected 0 or 1", args[4])
		}
	}
	return nil
}

// LoadConfig resolves the config file: the flag value, then the
// environment, then the XDG location if a file exists there. Without a
// file the defaults apply.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		if p := config.GetConfigPath(); utils.FileExists(p) {
			path = p
		}
	}

	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(path)
}

// WarnIfNotImage logs a warning when a local input has no image extension.
// Loading still decides whether the file is usable.
func WarnIfNotImage(log logrus.FieldLogger, source string) bool {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return false
	}
	if utils.IsImageFile(source) {
		return false
	}
	log.WithField("input", source).Warn("input does not have an image file extension")
	return true
}

// DescribeOutput returns "<path> (<size>)" for a written file
func DescribeOutput(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return path
	}
	return fmt.Sprintf("%s (%s)", path, utils.FormatFileSize(info.Size()))
}

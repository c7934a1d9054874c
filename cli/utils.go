package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/config/definition"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var durationType = reflect.TypeOf(time.Duration(0))

// addConfigFlags registers one persistent flag per flag-backed configuration field.
func addConfigFlags(fs *pflag.FlagSet) {
	for _, field := range definition.CreateRegistry().Sorted() {
		if field.CLIFlag == "" || fs.Lookup(field.CLIFlag) != nil {
			continue
		}
		switch {
		case field.Type == durationType:
			def, _ := field.Default.(time.Duration)
			fs.DurationP(field.CLIFlag, field.Shorthand, def, field.Help)
		case field.Type.Kind() == reflect.Bool:
			def, _ := field.Default.(bool)
			fs.BoolP(field.CLIFlag, field.Shorthand, def, field.Help)
		case field.Type.Kind() == reflect.Int:
			def, _ := field.Default.(int)
			fs.IntP(field.CLIFlag, field.Shorthand, def, field.Help)
		case field.Type.Kind() == reflect.Float64:
			def, _ := field.Default.(float64)
			fs.Float64P(field.CLIFlag, field.Shorthand, def, field.Help)
		default:
			def, _ := field.Default.(string)
			fs.StringP(field.CLIFlag, field.Shorthand, def, field.Help)
		}
	}
}

// extractCLIFlags extracts command line flags from a cobra command into a map.
// It processes only flags that have been explicitly changed by the user.
func extractCLIFlags(cmd *cobra.Command, flags map[string]any) {
	fs := cmd.Flags()
	for _, field := range definition.CreateRegistry().Sorted() {
		name := field.CLIFlag
		if name == "" || fs.Lookup(name) == nil || !fs.Changed(name) {
			continue
		}
		var (
			value any
			err   error
		)
		switch {
		case field.Type == durationType:
			value, err = fs.GetDuration(name)
		case field.Type.Kind() == reflect.Bool:
			value, err = fs.GetBool(name)
		case field.Type.Kind() == reflect.Int:
			value, err = fs.GetInt(name)
		case field.Type.Kind() == reflect.Float64:
			value, err = fs.GetFloat64(name)
		default:
			value, err = fs.GetString(name)
		}
		if err == nil {
			flags[name] = value
		}
	}
}

// loadEnvFile loads environment variables from a file with security validation
func loadEnvFile(cmd *cobra.Command) (string, error) {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return "", fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if envFile == "" {
		return "", nil
	}
	pwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	if !filepath.IsAbs(envFile) {
		envFile = filepath.Join(pwd, envFile)
	}
	absPath, err := filepath.Abs(filepath.Clean(envFile))
	if err != nil {
		return "", fmt.Errorf("failed to resolve env file path: %w", err)
	}
	if !isPathWithinDirectory(absPath, pwd) {
		return "", fmt.Errorf("env file path '%s' is outside the working directory", envFile)
	}
	fileInfo, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return absPath, nil
		}
		return "", fmt.Errorf("failed to stat env file: %w", err)
	}
	if !fileInfo.Mode().IsRegular() {
		return "", fmt.Errorf("env file path '%s' is not a regular file", envFile)
	}
	if err := godotenv.Load(absPath); err != nil {
		return "", fmt.Errorf("failed to load env file %s: %w", absPath, err)
	}
	return absPath, nil
}

// isPathWithinDirectory checks if a path is within the specified directory
func isPathWithinDirectory(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

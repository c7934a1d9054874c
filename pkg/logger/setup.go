package logger

import (
	"os"
)

// SetupLogger replaces the process default logger; it writes to stderr so
// command output on stdout stays machine readable.
func SetupLogger(logLevel string, logJSON, logSource bool) {
	Init(&Config{
		Level:      ParseLevel(logLevel),
		Output:     os.Stderr,
		JSON:       logJSON,
		AddSource:  logSource,
		TimeFormat: "15:04:05",
	})
}

package version

import "runtime"

// Build variables set via ldflags:
// -X 'github.com/kadoa-org/kadoa-sdk-go/pkg/version.Version=0.9.1'
// -X 'github.com/kadoa-org/kadoa-sdk-go/pkg/version.CommitHash=abc123'
// -X 'github.com/kadoa-org/kadoa-sdk-go/pkg/version.BuildDate=2024-01-01T00:00:00Z'
var (
	// Version is the SDK version reported to the API in x-sdk-version.
	Version = "0.9.0"
	// CommitHash is the git commit the binary was built from
	CommitHash = "unknown"
	// BuildDate is the RFC3339 build timestamp
	BuildDate = "unknown"
)

// Info returns build information in a structured format
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commitHash"`
	BuildDate  string `json:"buildDate"`
	GoVersion  string `json:"goVersion"`
}

// Get returns the current build information
func Get() Info {
	return Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildDate:  BuildDate,
		GoVersion:  runtime.Version(),
	}
}

// UserAgent is the User-Agent sent by the SDK.
func UserAgent() string {
	return "kadoa-sdk-go/" + Version + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}

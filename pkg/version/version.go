package version

// Set at build time via ldflags:
// -X 'github.com/flowrun-ai/codeexec/pkg/version.Version=v1.0.0'
// -X 'github.com/flowrun-ai/codeexec/pkg/version.CommitHash=abc123'
// -X 'github.com/flowrun-ai/codeexec/pkg/version.BuildDate=2024-01-01T00:00:00Z'
var (
	Version    = "unknown"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

// Info is the structured build information.
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildDate  string `json:"build_date"`
}

// Get returns the current build information.
func Get() Info {
	return Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildDate:  BuildDate,
	}
}

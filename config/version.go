package config

var (
	Version    string = "dev"
	CommitHash string = ""
)

// IsDevelopment reports whether this is a dev build.
func IsDevelopment() bool {
	return Version == "dev"
}

package httpapi

// Config defines the HTTP shell settings.
type Config struct {
	Addr          string
	SessionCookie string
	Metrics       bool
	// BasePath mounts the shell under a prefix when served behind a proxy.
	// Landing redirects carry the prefix.
	BasePath string
}

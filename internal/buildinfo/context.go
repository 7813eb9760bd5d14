// Package buildinfo contains build-time metadata separate from user configuration
package buildinfo

// Context contains build-time metadata that is not user-configurable.
// This data is injected at application startup via -ldflags.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string
}

// GetVersion returns the build version string, "dev" when unset
func (c *Context) GetVersion() string {
	if c.Version == "" {
		return "dev"
	}
	return c.Version
}

// GetBuildDate returns the build date string
func (c *Context) GetBuildDate() string {
	return c.BuildDate
}

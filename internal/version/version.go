package version

// Version is injected at build time via -ldflags. "dev" disables the
// self-update check.
var Version = "dev"

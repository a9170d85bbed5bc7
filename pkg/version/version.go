package version

// Version is overridden at build time via -ldflags "-X groundlink/pkg/version.Version=...".
var Version = "v0.3.1"

// Package build holds values stamped in at link time.
package build

// Version is set via -ldflags at build time, eg
// -ldflags "-X github.com/mwhitby/pdfraster/internal/build.Version=v0.3.0"
var Version = "dev"

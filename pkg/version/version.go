// Package version holds the build version, overridden at link time with
// -ldflags "-X github.com/puku-sh/gateway/pkg/version.Version=...".
package version

var Version = "0.1.0"

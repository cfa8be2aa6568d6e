// Package version provides build-time version information.
//
// The variables are set with ldflags:
//
//	go build -ldflags "\
//	  -X github.com/ncobase/blobjob/version.Version=1.2.3 \
//	  -X github.com/ncobase/blobjob/version.Branch=main \
//	  -X github.com/ncobase/blobjob/version.Revision=abc123 \
//	  -X 'github.com/ncobase/blobjob/version.BuiltAt=$(date)'" ./cmd/blobjob
//
// When they are left at their defaults, GetVersionInfo falls back to the
// VCS stamp the go toolchain embeds in the binary.
package version

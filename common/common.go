// Package common holds shared constants and logging setup used across
// the reference resolution backend.
package common

// PackageName identifies this service in logs and metrics.
const PackageName = "reference-resolution-backend"

// Version is set at build time via -ldflags.
var Version = "dev"

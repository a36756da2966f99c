// Package main is the entry point for the Zoom to Workplace Search connector.
package main

import (
	"os"

	"github.com/stacklok/zoom-search-connector/cmd/zoom-connector/app"
)

func main() {
	// Logs go to stderr so stdout stays clean for status and version output.
	app.SetupLogging(os.Stderr)
	os.Exit(app.Execute())
}

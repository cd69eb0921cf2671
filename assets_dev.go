//go:build dev

package main

import (
	"io/fs"
	"os"
)

// getWebAssets reads the service worker straight from disk in dev mode so
// edits show up without a rebuild.
func getWebAssets() (fs.FS, error) {
	return os.DirFS("web"), nil
}

package cmd

import "io/fs"

// WebFS is set by main() before Execute() is called.
// It holds the service worker served at /sw.js.
var WebFS fs.FS

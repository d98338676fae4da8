//go:build ignore

// Writes the tray icons to disk for packaging (app bundles, .desktop files).
// Usage: go run scripts/generate_icons.go [dir]
package main

import (
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"hyperkey/embedded"
)

func main() {
	dir := "dist/icons"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("create %s: %v", dir, err)
	}

	icons := map[string][]byte{
		"hyperkey_ready.png":    embedded.IconReady,
		"hyperkey_held.png":     embedded.IconHeld,
		"hyperkey_disabled.png": embedded.IconDisabled,
		"hyperkey_failed.png":   embedded.IconFailed,
	}
	for name, data := range icons {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Fatalf("write %s: %v", path, err)
		}
		log.Infof("wrote %s", path)
	}
}

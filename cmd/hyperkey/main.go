// Hyperkey turns one key into Command+Option+Control+Shift while it is held.
//
// It lives in the system tray. A short tap of the trigger key still toggles
// Caps Lock.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"hyperkey/internal/app"
	"hyperkey/internal/hotkey"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default $HYPERKEY_CONFIG or the user config dir)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("hyperkey", Version)
		return
	}

	// The tray and the macOS event tap need the main thread free
	hotkey.RunOnMainThread(func() { run(*configPath) })
}

func run(configPath string) {
	application, err := app.New(app.Options{ConfigPath: configPath})
	if err != nil {
		log.WithError(err).Error("hyperkey: init failed")
		os.Exit(1)
	}
	log.Infof("hyperkey %s started", Version)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("hyperkey: shutting down")
		application.Close()
		application.Quit()
	}()

	application.Run()
}

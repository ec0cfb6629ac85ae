package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/ember-engine/ember/engine"
	"github.com/ember-engine/ember/engine/config"
	"github.com/ember-engine/ember/engine/core"
)

const configPath = "ember.toml"

func main() {
	cfg, err := config.Load(configPath)
	if err != nil {
		core.LogFatal(err.Error())
	}

	app, err := engine.New(cfg)
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := app.Initialize(); err != nil {
		core.LogFatal(err.Error())
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		<-sigCh
		_ = app.Shutdown()
	}()

	if err := app.Run(); err != nil {
		core.LogFatal(err.Error())
	}
}

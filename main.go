package main

import (
	"embed"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"audiotranslator/internal/bootstrap"
	"audiotranslator/internal/config"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	cfg, cfgErr := config.Load()
	log := bootstrap.NewLogger(cfg.Log)
	if cfgErr != nil {
		log.Warning("config: " + cfgErr.Error())
	}

	app := NewApp(log)
	err := wails.Run(&options.App{
		Title:     "Audio Translator",
		Width:     1100,
		Height:    780,
		MinWidth:  800,
		MinHeight: 600,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
		Logger:   log,
		LogLevel: cfg.Log.LogLevel(),
	})
	if err != nil {
		log.Fatal(err.Error())
	}
}

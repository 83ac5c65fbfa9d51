package main

import (
	"embed"
	"log/slog"

	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"

	"github.com/gamepal-app/gamepal/internal/app"
)

//go:embed all:frontend/dist
var assets embed.FS

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.Info("starting app", "version", version, "commit", commit, "date", date)
	svc := app.New(version)

	wailsApp := application.New(application.Options{
		Name:        "GamePal",
		Description: "AI gaming companion for streamers",
		Services: []application.Service{
			application.NewService(svc),
		},
		Assets: application.AssetOptions{
			Handler: application.BundledAssetFileServer(assets),
		},
		Mac: application.MacOptions{
			// Don't quit when all windows are closed (we have a system tray)
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
	})

	// Main control window
	mainWindow := wailsApp.Window.NewWithOptions(application.WebviewWindowOptions{
		Title:  "GamePal",
		Width:  1024,
		Height: 768,
		URL:    "/",
		Mac: application.MacWindow{
			TitleBar:                application.MacTitleBarHiddenInsetUnified,
			InvisibleTitleBarHeight: 38,
		},
		DevToolsEnabled: true,
	})

	// Always-on-top overlay showing listener state over the game
	overlayWindow := wailsApp.Window.NewWithOptions(application.WebviewWindowOptions{
		Title:         "GamePal Overlay",
		Width:         320,
		Height:        120,
		URL:           "/overlay.html",
		AlwaysOnTop:   true,
		Frameless:     true,
		DisableResize: true,
		Hidden:        true,
	})

	// Simulated livestream stage
	stageWindow := wailsApp.Window.NewWithOptions(application.WebviewWindowOptions{
		Title:  "GamePal Stage",
		Width:  420,
		Height: 640,
		URL:    "/stage.html",
		Hidden: true,
	})

	// Intercept window close: hide instead of destroy so tray can reopen
	for _, w := range []application.Window{mainWindow, overlayWindow, stageWindow} {
		window := w
		window.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
			e.Cancel()
			window.Hide()
		})
	}

	// Initialize service with app and window references
	svc.Init(wailsApp, mainWindow)

	// Setup system tray
	systemTray := wailsApp.SystemTray.New()
	systemTray.SetLabel("GamePal")

	trayMenu := wailsApp.NewMenu()
	trayMenu.Add("显示窗口").OnClick(func(ctx *application.Context) {
		mainWindow.Show()
		mainWindow.Focus()
	})
	trayMenu.Add("悬浮窗").OnClick(func(ctx *application.Context) {
		overlayWindow.Show()
	})
	trayMenu.Add("直播间").OnClick(func(ctx *application.Context) {
		stageWindow.Show()
	})

	trayMenu.AddSeparator()
	trayMenu.Add("开始/停止聆听").
		SetAccelerator("CmdOrCtrl+Shift+G").
		OnClick(func(ctx *application.Context) {
			go func() {
				if err := svc.ToggleListening(); err != nil {
					slog.Error("toggle listening from tray", "error", err)
				}
			}()
		})
	trayMenu.Add("模拟观众").OnClick(func(ctx *application.Context) {
		if svc.IsSimulationRunning() {
			svc.StopSimulation()
			return
		}
		if err := svc.StartSimulation(); err != nil {
			slog.Error("start simulation from tray", "error", err)
		}
	})

	trayMenu.AddSeparator()
	trayMenu.Add("退出").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(ctx *application.Context) {
			svc.Shutdown()
			wailsApp.Quit()
		})

	systemTray.SetMenu(trayMenu)

	// Run application
	if err := wailsApp.Run(); err != nil {
		slog.Error("run app", "error", err)
	}
}

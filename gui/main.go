package main

import (
	"flag"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	_ "serialbridge/format/barcode"
	_ "serialbridge/format/scale"
	"serialbridge/gui/client"
	"serialbridge/gui/ui"
	"serialbridge/monitoring"
)

func main() {
	serviceURL := flag.String("url", client.DefaultURL, "Monitoring address of the serialbridge service")
	configPath := flag.String("config", monitoring.DefaultConfigPath, "Path to the service configuration file")
	flag.Parse()

	myApp := app.New()
	myWindow := myApp.NewWindow(ui.Title)
	myWindow.Resize(fyne.NewSize(1000, 720))

	mainUI := ui.NewMainUI(myWindow, client.New(*serviceURL), *configPath)
	myWindow.SetContent(mainUI.Build())
	myWindow.SetOnClosed(mainUI.Close)
	myWindow.ShowAndRun()
}

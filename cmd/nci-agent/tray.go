package main

import (
	"fmt"
	"time"

	"fyne.io/systray"

	"github.com/dotside-studios/davi-nfc-agent/internal/buildinfo"
)

// Tray shows adapter status in the system tray, trimmed from
// systray.go's SystrayApp to what this agent actually exposes: there is
// no device/mode/card-filter selection here, since nci.Adapter drives a
// stand-in Core rather than a physical reader with interchangeable
// transports.
type Tray struct {
	notifier *WSNotifier

	mStatus  *systray.MenuItem
	mClients *systray.MenuItem
	mQuit    *systray.MenuItem

	stop chan struct{}
}

// NewTray creates a Tray bound to notifier for its client-count display.
func NewTray(notifier *WSNotifier) *Tray {
	return &Tray{notifier: notifier, stop: make(chan struct{})}
}

// Run blocks running the systray event loop until Quit is clicked or
// onExit is invoked by the runtime.
func (t *Tray) Run(onExit func()) {
	systray.Run(t.onReady, func() {
		close(t.stop)
		onExit()
	})
}

func (t *Tray) onReady() {
	systray.SetTitle(buildinfo.DisplayName)
	systray.SetTooltip(buildinfo.Description)

	t.mStatus = systray.AddMenuItem("Running", "Adapter status")
	t.mStatus.Disable()

	t.mClients = systray.AddMenuItem("Clients: 0", "Connected WebSocket clients")
	t.mClients.Disable()

	systray.AddSeparator()
	t.mQuit = systray.AddMenuItem("Quit", "Quit the application")

	go t.pollClientCount()
	go func() {
		select {
		case <-t.mQuit.ClickedCh:
			systray.Quit()
		case <-t.stop:
		}
	}()
}

// pollClientCount mirrors systray.go's startCardInfoUpdater: a ticker
// that only touches the menu item when the displayed value changes.
func (t *Tray) pollClientCount() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			n := t.notifier.ClientCount()
			if n != last {
				t.mClients.SetTitle(fmt.Sprintf("Clients: %d", n))
				last = n
			}
		}
	}
}

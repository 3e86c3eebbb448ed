// Package systemd reports service state to the service manager over
// NOTIFY_SOCKET. Every call is a no-op when not started by systemd.
package systemd

import (
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages. The zero value is ready to use.
type Notifier struct {
	// send is swapped in tests.
	send func(state string) (bool, error)
}

func (n Notifier) notify(state string) error {
	send := n.send
	if send == nil {
		send = func(state string) (bool, error) { return daemon.SdNotify(false, state) }
	}
	_, err := send(state)
	return err
}

func (n Notifier) Ready() error     { return n.notify(daemon.SdNotifyReady) }
func (n Notifier) Stopping() error  { return n.notify(daemon.SdNotifyStopping) }
func (n Notifier) Watchdog() error  { return n.notify(daemon.SdNotifyWatchdog) }
func (n Notifier) Reloading() error { return n.notify(daemon.SdNotifyReloading) }

// Status sets the one-line status shown by systemctl status.
func (n Notifier) Status(format string, args ...any) error {
	return n.notify("STATUS=" + fmt.Sprintf(format, args...))
}

// WatchdogInterval is WatchdogSec from the unit, or 0 when the watchdog is
// off.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return 0
	}
	return d
}

package channel

import (
	"context"
	"html"
	"time"

	"github.com/godbus/dbus/v5"

	"ticketwatch/internal/apperr"
	"ticketwatch/internal/entry"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod = notifyDest + ".Notify"
)

// DesktopNotifier shows one popup. The dbus implementation is used unless a
// test swaps it.
type DesktopNotifier interface {
	Notify(ctx context.Context, appName, summary, body string, timeout time.Duration) error
}

type DesktopOptions struct {
	AppName   string
	MaxLength int
	Timeout   time.Duration
	Notifier  DesktopNotifier
}

// Desktop raises a local notification on the session bus.
type Desktop struct {
	opt DesktopOptions
}

func NewDesktop(opt DesktopOptions) *Desktop {
	if opt.AppName == "" {
		opt.AppName = "ticketwatch"
	}
	if opt.MaxLength <= 0 {
		opt.MaxLength = 100
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 10 * time.Second
	}
	if opt.Notifier == nil {
		opt.Notifier = SessionBusNotifier{}
	}
	return &Desktop{opt: opt}
}

func (d *Desktop) Name() string { return "desktop" }

func (d *Desktop) Deliver(ctx context.Context, e entry.Entry) error {
	body := html.EscapeString(cutRunes(singleLine(e.Title), d.opt.MaxLength))
	if err := d.opt.Notifier.Notify(ctx, d.opt.AppName, headline, body, d.opt.Timeout); err != nil {
		return apperr.Transport("desktop", err)
	}
	return nil
}

// cutRunes keeps the first max runes, no ellipsis.
func cutRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// SessionBusNotifier talks to the freedesktop notification daemon.
type SessionBusNotifier struct{}

func (SessionBusNotifier) Notify(ctx context.Context, appName, summary, body string, timeout time.Duration) error {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return err
	}
	defer conn.Close()

	obj := conn.Object(notifyDest, notifyPath)
	call := obj.CallWithContext(ctx, notifyMethod, 0,
		appName,   // app_name
		uint32(0), // replaces_id
		"",        // app_icon
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{},
		int32(timeout/time.Millisecond),
	)
	return call.Err
}

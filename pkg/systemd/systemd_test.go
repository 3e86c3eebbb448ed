package systemd

import (
	"errors"
	"testing"
)

func TestNotifierMessages(t *testing.T) {
	var got []string
	n := Notifier{send: func(state string) (bool, error) {
		got = append(got, state)
		return true, nil
	}}
	_ = n.Ready()
	_ = n.Watchdog()
	_ = n.Status("cycle %d done", 3)
	_ = n.Reloading()
	_ = n.Stopping()

	want := []string{"READY=1", "WATCHDOG=1", "STATUS=cycle 3 done", "RELOADING=1", "STOPPING=1"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNotifierPassesErrors(t *testing.T) {
	n := Notifier{send: func(string) (bool, error) { return false, errors.New("socket gone") }}
	if err := n.Ready(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestZeroNotifierOutsideSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	if err := (Notifier{}).Ready(); err != nil {
		t.Fatalf("Ready outside systemd: %v", err)
	}
	t.Setenv("WATCHDOG_USEC", "")
	if d := WatchdogInterval(); d != 0 {
		t.Fatalf("watchdog = %s", d)
	}
}

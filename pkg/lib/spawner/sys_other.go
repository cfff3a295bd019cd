//go:build !linux

package spawner

import (
	"log/slog"
	"syscall"
)

type procAttr struct {
	raw    *syscall.SysProcAttr
	cgroup bool
}

func (a *procAttr) closeFile() {}

func sysProcAttr(string, *slog.Logger) *procAttr {
	// New process group to manage children as a unit
	return &procAttr{raw: &syscall.SysProcAttr{Setpgid: true}}
}

func killCgroup(string) (bool, error) {
	return false, nil
}

func cleanupCgroup(string) error {
	return nil
}

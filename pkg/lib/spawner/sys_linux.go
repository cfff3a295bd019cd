//go:build linux

package spawner

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"
)

const cgroupRoot = "/sys/fs/cgroup/prn"

var (
	cgroupRootOnce sync.Once
	cgroupRootErr  error
)

type procAttr struct {
	raw    *syscall.SysProcAttr
	file   *os.File
	cgroup bool
}

func (a *procAttr) closeFile() {
	if a.file != nil {
		_ = a.file.Close()
		a.file = nil
	}
}

// sysProcAttr places the child in a new process group and, as root, in a
// dedicated cgroup. Cgroup failures fall back to the process group only.
func sysProcAttr(id string, log *slog.Logger) *procAttr {
	attr := &procAttr{raw: &syscall.SysProcAttr{Setpgid: true}}
	if os.Geteuid() != 0 {
		return attr
	}

	cgroupRootOnce.Do(func() {
		cgroupRootErr = os.MkdirAll(cgroupRoot, 0o755)
	})
	if cgroupRootErr != nil {
		log.Warn("cgroup root unavailable", "error", cgroupRootErr)
		return attr
	}

	dir := filepath.Join(cgroupRoot, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn("failed to create cgroup", "error", err)
		return attr
	}
	file, err := os.Open(dir)
	if err != nil {
		_ = os.Remove(dir)
		log.Warn("failed to open cgroup", "error", err)
		return attr
	}

	attr.raw.UseCgroupFD = true
	attr.raw.CgroupFD = int(file.Fd())
	attr.file = file
	attr.cgroup = true
	return attr
}

// killCgroup kills every process in the cgroup of id.
func killCgroup(id string) (bool, error) {
	err := os.WriteFile(filepath.Join(cgroupRoot, id, "cgroup.kill"), []byte("1"), 0o644)
	return err == nil, err
}

func cleanupCgroup(id string) error {
	return os.Remove(filepath.Join(cgroupRoot, id))
}

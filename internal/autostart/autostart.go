// Package autostart registers a project's watch command to run at login.
package autostart

import (
	"runtime"
	"strings"
)

// Unit is one registered watcher: kbsync watch <Category> <Project>.
type Unit struct {
	ExecPath string
	Category string
	Project  string
}

// Name is the service or task name for the unit.
func (u Unit) Name() string {
	r := strings.NewReplacer(" ", "_", "/", "_", "\\", "_")
	return "kbsync-" + r.Replace(u.Category) + "-" + r.Replace(u.Project)
}

type AutoStarter interface {
	Install(u Unit) error
	Uninstall(u Unit) error
	IsInstalled(u Unit) (bool, error)
}

func New() AutoStarter {
	switch runtime.GOOS {
	case "windows":
		return &WindowsAutoStarter{}
	case "linux":
		return &LinuxAutoStarter{}
	default:
		return &UnsupportedAutoStarter{}
	}
}

type UnsupportedAutoStarter struct{}

func (u *UnsupportedAutoStarter) Install(Unit) error {
	return nil
}

func (u *UnsupportedAutoStarter) Uninstall(Unit) error {
	return nil
}

func (u *UnsupportedAutoStarter) IsInstalled(Unit) (bool, error) {
	return false, nil
}

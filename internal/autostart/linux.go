package autostart

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/mitchellh/go-homedir"
)

var serviceTemplate = template.Must(template.New("service").Parse(`[Unit]
Description=kbsync watch {{.Category}}/{{.Project}}
After=network-online.target

[Service]
ExecStart="{{.ExecPath}}" watch "{{.Category}}" "{{.Project}}"
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`))

type LinuxAutoStarter struct {
	// Dir overrides ~/.config/systemd/user.
	Dir string
	// Run executes systemctl; nil runs the real binary.
	Run func(args ...string) error
}

func (l *LinuxAutoStarter) servicePath(u Unit) (string, error) {
	dir := l.Dir
	if dir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config", "systemd", "user")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(dir, u.Name()+".service"), nil
}

func writeService(w io.Writer, u Unit) error {
	if err := serviceTemplate.Execute(w, u); err != nil {
		return fmt.Errorf("failed to write service file: %w", err)
	}
	return nil
}

func (l *LinuxAutoStarter) systemctl(args ...string) error {
	if l.Run != nil {
		return l.Run(args...)
	}

	cmd := exec.Command("systemctl", append([]string{"--user"}, args...)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to run systemctl %v: %w\n%s", args, err, out)
	}
	return nil
}

func (l *LinuxAutoStarter) Install(u Unit) error {
	path, err := l.servicePath(u)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create service file: %w", err)
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	if err := writeService(f, u); err != nil {
		return err
	}

	for _, args := range [][]string{
		{"daemon-reload"},
		{"enable", u.Name() + ".service"},
		{"start", u.Name() + ".service"},
	} {
		if err := l.systemctl(args...); err != nil {
			return err
		}
	}

	return nil
}

func (l *LinuxAutoStarter) Uninstall(u Unit) error {
	_ = l.systemctl("stop", u.Name()+".service")
	_ = l.systemctl("disable", u.Name()+".service")

	path, err := l.servicePath(u)
	if err != nil {
		return err
	}

	return os.Remove(path)
}

func (l *LinuxAutoStarter) IsInstalled(u Unit) (bool, error) {
	path, err := l.servicePath(u)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	return err == nil, nil
}

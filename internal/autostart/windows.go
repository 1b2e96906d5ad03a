package autostart

import (
	"fmt"
	"os/exec"
)

type WindowsAutoStarter struct{}

func (w *WindowsAutoStarter) Install(u Unit) error {
	cmd := exec.Command("schtasks", "/create",
		"/TN", u.Name(),
		"/TR", fmt.Sprintf(`"%s" watch "%s" "%s"`, u.ExecPath, u.Category, u.Project),
		"/SC", "ONLOGON",
		"/F")

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to register task: %w\n%s", err, out)
	}

	return nil
}

func (w *WindowsAutoStarter) Uninstall(u Unit) error {
	cmd := exec.Command("schtasks", "/DELETE", "/TN", u.Name(), "/F")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to remove task: %w\n%s", err, out)
	}

	return nil
}

func (w *WindowsAutoStarter) IsInstalled(u Unit) (bool, error) {
	cmd := exec.Command("schtasks", "/Query", "/TN", u.Name())
	if err := cmd.Run(); err != nil {
		return false, nil
	}

	return true, nil
}

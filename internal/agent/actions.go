package agent

import (
	"fmt"
	"os/exec"
)

// ServiceName is the systemd unit restarted by the restart_service
// command.
const ServiceName = "enviroagent.service"

// hostActions maps command payloads to the processes they launch.
var hostActions = map[string][]string{
	"reboot":          {"sudo", "reboot"},
	"shutdown":        {"sudo", "shutdown", "-h", "now"},
	"restart_service": {"sudo", "systemctl", "restart", ServiceName},
}

// ActionRunner launches a host-level action. Implementations must not
// wait for the process to finish.
type ActionRunner interface {
	Start(name string, args ...string) error
}

// ExecRunner launches detached subprocesses for host actions.
type ExecRunner struct{}

// Start launches the process fire-and-forget. The handle is released
// immediately: the router never waits on an action's exit status, and
// for reboot/shutdown this process won't be around to collect it
// anyway.
func (ExecRunner) Start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	return cmd.Process.Release()
}

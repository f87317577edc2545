package conversation

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// SystemInfo reports host health for the status command.
type SystemInfo interface {
	// Temperature returns the SoC temperature in whole degrees Celsius.
	Temperature() int

	// Uptime returns a human-readable uptime.
	Uptime() string
}

// HostInfo reads health from sysfs and uptime(1).
type HostInfo struct {
	ThermalPath string
}

// Temperature implements SystemInfo. Unreadable sensors report 0.
func (h HostInfo) Temperature() int {
	raw, err := os.ReadFile(h.ThermalPath)
	if err != nil {
		return 0
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0
	}
	return milli / 1000
}

// Uptime implements SystemInfo.
func (h HostInfo) Uptime() string {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "uptime", "-p").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

package handle

import "github.com/r-heap47/gamehost/internal/panel"

// Status is the coarse power state reported to callers.
type Status string

const (
	StatusOffline  Status = "OFFLINE"
	StatusStarting Status = "STARTING"
	StatusOnline   Status = "ONLINE"
	StatusStopping Status = "STOPPING"
)

// StatusOf maps a panel power state. Anything unrecognised is offline.
func StatusOf(state panel.PowerState) Status {
	switch state {
	case panel.StateStarting:
		return StatusStarting
	case panel.StateRunning:
		return StatusOnline
	case panel.StateStopping:
		return StatusStopping
	default:
		return StatusOffline
	}
}

// Usage is a resource utilization snapshot.
type Usage struct {
	MemoryMB   int64   `json:"memory_mb"`
	DiskMB     int64   `json:"disk_mb"`
	CPUPercent float64 `json:"cpu_percent"`
}

const mib = 1024 * 1024

// UsageOf converts a panel utilization report; negative readings are clamped to zero.
func UsageOf(u panel.Utilization) Usage {
	return Usage{
		MemoryMB:   max(u.MemoryBytes, 0) / mib,
		DiskMB:     max(u.DiskBytes, 0) / mib,
		CPUPercent: max(u.CPUAbsolute, 0),
	}
}

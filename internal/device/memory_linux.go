//go:build linux

package device

import "golang.org/x/sys/unix"

// SystemMemory returns a probe backed by sysinfo(2).
func SystemMemory() MemoryProbe {
	return MemoryProbeFunc(func() (float64, bool) {
		var info unix.Sysinfo_t
		if err := unix.Sysinfo(&info); err != nil {
			return 0, false
		}
		unit := uint64(info.Unit)
		if unit == 0 {
			unit = 1
		}
		total := uint64(info.Totalram) * unit
		if total == 0 {
			return 0, false
		}
		available := (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
		if available > total {
			available = total
		}
		return float64(total-available) / float64(total) * 100, true
	})
}

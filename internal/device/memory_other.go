//go:build !linux

package device

// SystemMemory returns a probe that never reports usage on this platform.
func SystemMemory() MemoryProbe {
	return MemoryProbeFunc(func() (float64, bool) { return 0, false })
}

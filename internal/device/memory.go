package device

// MemoryProbe reports how much of the host's memory is in use.
type MemoryProbe interface {
	// UsagePercent returns used memory as a percentage of total. ok is false
	// when the host does not expose the figure.
	UsagePercent() (percent float64, ok bool)
}

// MemoryProbeFunc adapts a function to MemoryProbe.
type MemoryProbeFunc func() (float64, bool)

func (f MemoryProbeFunc) UsagePercent() (float64, bool) { return f() }

// IsMemoryUsageHigh reports whether probe exceeds threshold percent. Hosts
// that cannot report usage are never considered under pressure.
func IsMemoryUsageHigh(probe MemoryProbe, threshold float64) bool {
	if probe == nil {
		return false
	}
	percent, ok := probe.UsagePercent()
	if !ok {
		return false
	}
	return percent > threshold
}

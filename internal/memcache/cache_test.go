package memcache_test

import (
	"fmt"
	"testing"

	"slidekeeper/internal/device"
	"slidekeeper/internal/memcache"
)

func preview(i int) memcache.Preview {
	return memcache.Preview{SlideID: fmt.Sprintf("slide_%d", i), DataURL: "data:image/jpeg;base64,AA==", Index: i}
}

func fixedProbe(percent float64) device.MemoryProbe {
	return device.MemoryProbeFunc(func() (float64, bool) { return percent, true })
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := memcache.New(3, nil, 70, nil)
	for i := 1; i <= 3; i++ {
		c.Add(preview(i))
	}
	if _, ok := c.Get("slide_1"); !ok {
		t.Fatal("slide_1 should be cached")
	}
	c.Add(preview(4))

	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
	if c.Contains("slide_2") {
		t.Fatal("slide_2 was least recently used and should be evicted")
	}
	for _, id := range []string{"slide_1", "slide_3", "slide_4"} {
		if !c.Contains(id) {
			t.Fatalf("%s missing", id)
		}
	}
	if c.Evictions() != 1 {
		t.Fatalf("evictions = %d, want 1", c.Evictions())
	}

	got := c.Previews()
	want := []string{"slide_3", "slide_1", "slide_4"}
	for i, p := range got {
		if p.SlideID != want[i] {
			t.Fatalf("previews[%d] = %s, want %s", i, p.SlideID, want[i])
		}
	}
}

func TestCachePurgesUnderPressure(t *testing.T) {
	tests := []struct {
		name    string
		percent float64
		purged  bool
	}{
		{name: "below", percent: 50},
		{name: "at threshold", percent: 70},
		{name: "above", percent: 71, purged: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := memcache.New(5, fixedProbe(tt.percent), 70, nil)
			c.Add(preview(1))
			got := c.Add(preview(2))
			if got != tt.purged {
				t.Fatalf("Add purged = %v, want %v", got, tt.purged)
			}
			if tt.purged {
				if c.Len() != 0 {
					t.Fatalf("len = %d after purge", c.Len())
				}
				if c.PressurePurges() != 2 {
					t.Fatalf("pressure purges = %d, want 2", c.PressurePurges())
				}
				if c.Evictions() != 0 {
					t.Fatalf("purge counted as eviction: %d", c.Evictions())
				}
				return
			}
			if c.Len() != 2 {
				t.Fatalf("len = %d, want 2", c.Len())
			}
		})
	}
}

func TestCacheUnknownUsageNeverPurges(t *testing.T) {
	probe := device.MemoryProbeFunc(func() (float64, bool) { return 99, false })
	c := memcache.New(2, probe, 70, nil)
	c.Add(preview(1))
	if c.PurgeIfPressure() {
		t.Fatal("unknown usage should not purge")
	}
	if c.Len() != 1 {
		t.Fatalf("len = %d", c.Len())
	}
}

func TestForProfileUsesTierCapacity(t *testing.T) {
	c := memcache.ForProfile(device.ProfileFor(device.TierIOS), nil, nil)
	if c.Capacity() != 5 {
		t.Fatalf("capacity = %d, want 5", c.Capacity())
	}
	for i := 0; i < 8; i++ {
		c.Add(preview(i))
	}
	if c.Len() != 5 {
		t.Fatalf("len = %d, want 5", c.Len())
	}
	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("len after purge = %d", c.Len())
	}
}

func TestNewClampsCapacity(t *testing.T) {
	c := memcache.New(0, nil, 70, nil)
	c.Add(preview(1))
	c.Add(preview(2))
	if c.Capacity() != 1 || c.Len() != 1 {
		t.Fatalf("capacity=%d len=%d", c.Capacity(), c.Len())
	}
}

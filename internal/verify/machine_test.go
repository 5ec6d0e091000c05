package verify_test

import (
	"image"
	"testing"
	"time"

	"slidekeeper/internal/frame"
	"slidekeeper/internal/verify"
)

// labelComparer treats frames as changed when their first red byte differs.
type labelComparer struct{ calls int }

func (c *labelComparer) IsChanged(prev, next image.Image) bool {
	c.calls++
	return prev.(*image.RGBA).Pix[0] != next.(*image.RGBA).Pix[0]
}

func labeled(label byte) *frame.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Pix[0] = label
	return frame.New(img, time.Unix(int64(label), 0))
}

func TestFirstFrameCommitsImmediately(t *testing.T) {
	m := verify.NewMachine(&labelComparer{}, verify.Settings{Enabled: true, Count: 3})
	d := m.Observe(labeled('A'))
	if d.Outcome != verify.OutcomeCommit || !d.First {
		t.Fatalf("first decision = %+v", d)
	}
	if m.Baseline() == nil || m.State() != verify.Idle {
		t.Fatal("expected baseline set and Idle state")
	}
}

func TestDebounceScenario(t *testing.T) {
	m := verify.NewMachine(&labelComparer{}, verify.Settings{Enabled: true, Count: 2})
	a, b := labeled('A'), labeled('B')
	sequence := []*frame.Frame{a, b, a, labeled('B'), labeled('B')}

	var commits []*frame.Frame
	for i, f := range sequence {
		d := m.Observe(f)
		if d.Outcome == verify.OutcomeCommit {
			commits = append(commits, d.Frame)
		}
		if i == 2 {
			if len(commits) != 1 || commits[0] != a {
				t.Fatalf("after third frame commits = %d, want only the baseline", len(commits))
			}
			if d.Outcome != verify.OutcomeRejected || m.State() != verify.Idle {
				t.Fatalf("third frame decision %+v, state %v", d, m.State())
			}
		}
	}
	if len(commits) != 2 {
		t.Fatalf("commits = %d, want baseline plus one", len(commits))
	}
	if commits[1] != sequence[3] {
		t.Fatal("expected the verified candidate B to be committed")
	}
	if m.State() != verify.Idle || m.Baseline() != sequence[3] {
		t.Fatal("expected Idle with B as baseline")
	}
}

func TestVerificationProgress(t *testing.T) {
	m := verify.NewMachine(&labelComparer{}, verify.Settings{Enabled: true, Count: 3})
	m.Observe(labeled('A'))

	d := m.Observe(labeled('B'))
	if d.Outcome != verify.OutcomeVerifying || d.Count != 1 || d.Target != 3 {
		t.Fatalf("detect decision %+v", d)
	}
	d = m.Observe(labeled('B'))
	if d.Outcome != verify.OutcomeVerifying || d.Count != 2 {
		t.Fatalf("second decision %+v", d)
	}
	if c, target := m.Progress(); c != 2 || target != 3 {
		t.Fatalf("Progress = %d/%d", c, target)
	}
	d = m.Observe(labeled('B'))
	if d.Outcome != verify.OutcomeCommit || d.First {
		t.Fatalf("third decision %+v", d)
	}
}

func TestCountOfOneWaitsForOneConfirmation(t *testing.T) {
	m := verify.NewMachine(&labelComparer{}, verify.Settings{Enabled: true, Count: 1})
	m.Observe(labeled('A'))

	b := labeled('B')
	d := m.Observe(b)
	if d.Outcome != verify.OutcomeVerifying || m.State() != verify.Verifying {
		t.Fatalf("changed frame committed without confirmation: %+v", d)
	}
	if c, target := m.Progress(); c != 1 || target != 2 {
		t.Fatalf("Progress = %d/%d, want 1/2", c, target)
	}
	d = m.Observe(labeled('B'))
	if d.Outcome != verify.OutcomeCommit || d.Frame != b {
		t.Fatalf("confirmation decision %+v", d)
	}
}

func TestDisabledVerificationCommitsOnChange(t *testing.T) {
	m := verify.NewMachine(&labelComparer{}, verify.Settings{Enabled: false, Count: 2})
	m.Observe(labeled('A'))
	if d := m.Observe(labeled('A')); d.Outcome != verify.OutcomeNone {
		t.Fatalf("unchanged decision %+v", d)
	}
	b := labeled('B')
	if d := m.Observe(b); d.Outcome != verify.OutcomeCommit || d.Frame != b {
		t.Fatalf("changed decision %+v", d)
	}
}

func TestMissingFrameResetsVerification(t *testing.T) {
	m := verify.NewMachine(&labelComparer{}, verify.Settings{Enabled: true, Count: 2})
	m.Observe(labeled('A'))
	m.Observe(labeled('B'))
	if m.State() != verify.Verifying {
		t.Fatal("expected Verifying")
	}
	if !m.FrameUnavailable() {
		t.Fatal("expected candidate discarded")
	}
	if m.State() != verify.Idle {
		t.Fatal("expected Idle after missing frame")
	}
	// The stable frame after a reset starts a fresh verification.
	if d := m.Observe(labeled('B')); d.Outcome != verify.OutcomeVerifying {
		t.Fatalf("decision after reset %+v", d)
	}
	if m.Observe(nil).Outcome != verify.OutcomeNone || m.State() != verify.Idle {
		t.Fatal("nil frame must reset to Idle")
	}
}

func TestApplyDisablingDropsCandidate(t *testing.T) {
	m := verify.NewMachine(&labelComparer{}, verify.Settings{Enabled: true, Count: 2})
	m.Observe(labeled('A'))
	m.Observe(labeled('B'))
	m.Apply(verify.Settings{Enabled: true, Count: 4})
	if m.State() != verify.Verifying {
		t.Fatal("count change should keep verifying")
	}
	m.Apply(verify.Settings{Enabled: false, Count: 4})
	if m.State() != verify.Idle {
		t.Fatal("disabling should reset")
	}
}

func TestClearBaseline(t *testing.T) {
	m := verify.NewMachine(&labelComparer{}, verify.Settings{Enabled: true, Count: 2})
	m.Observe(labeled('A'))
	m.ClearBaseline()
	if m.Baseline() != nil {
		t.Fatal("expected baseline cleared")
	}
	if d := m.Observe(labeled('A')); d.Outcome != verify.OutcomeCommit || !d.First {
		t.Fatalf("expected first-frame commit after clear, got %+v", d)
	}
}

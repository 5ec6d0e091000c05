package verify

import (
	"image"

	"slidekeeper/internal/frame"
)

// Comparer reports whether next shows a different slide from prev.
type Comparer interface {
	IsChanged(prev, next image.Image) bool
}

// State is the machine's verification state.
type State int

const (
	Idle State = iota
	Verifying
)

func (s State) String() string {
	if s == Verifying {
		return "verifying"
	}
	return "idle"
}

// Outcome is what a single observation produced.
type Outcome int

const (
	// OutcomeNone means nothing changed.
	OutcomeNone Outcome = iota
	// OutcomeCommit means Decision.Frame must be persisted as a new slide.
	OutcomeCommit
	// OutcomeVerifying means a candidate was taken or confirmed once more.
	OutcomeVerifying
	// OutcomeRejected means the candidate proved unstable and was dropped.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommit:
		return "commit"
	case OutcomeVerifying:
		return "verifying"
	case OutcomeRejected:
		return "rejected"
	default:
		return "none"
	}
}

// Decision reports the result of Observe.
type Decision struct {
	Outcome Outcome
	// Frame is the frame to commit when Outcome is OutcomeCommit.
	Frame *frame.Frame
	// First is set when the commit is the run's first baseline.
	First bool
	// Count and Target describe verification progress.
	Count  int
	Target int
}

// Settings controls double verification.
type Settings struct {
	Enabled bool
	// Count is how many consecutive captures must show the candidate,
	// including the capture that introduced it. At least one confirming
	// capture is always required, so 1 behaves like 2.
	Count int
}

// Machine is the verification state machine. It is not safe for concurrent
// use; callers serialize Observe and the reset methods.
type Machine struct {
	cmp      Comparer
	settings Settings

	state     State
	baseline  *frame.Frame
	candidate *frame.Frame
	count     int
}

// NewMachine returns an Idle machine with no baseline.
func NewMachine(cmp Comparer, settings Settings) *Machine {
	return &Machine{cmp: cmp, settings: normalize(settings)}
}

func normalize(s Settings) Settings {
	if s.Count < 1 {
		s.Count = 1
	}
	return s
}

func (m *Machine) State() State { return m.state }

func (m *Machine) Settings() Settings { return m.settings }

// Progress returns the confirmation count and target while Verifying.
func (m *Machine) Progress() (count, target int) {
	if m.state != Verifying {
		return 0, 0
	}
	return m.count, m.target()
}

func (m *Machine) target() int {
	return max(m.settings.Count, 2)
}

// Baseline returns the last committed frame.
func (m *Machine) Baseline() *frame.Frame { return m.baseline }

// ClearBaseline forgets the committed frame so the next capture commits
// immediately. Any candidate is discarded.
func (m *Machine) ClearBaseline() {
	m.baseline = nil
	m.Reset()
}

// Reset discards any candidate and returns to Idle. It reports whether a
// candidate was discarded.
func (m *Machine) Reset() bool {
	discarded := m.state == Verifying
	m.state = Idle
	m.candidate = nil
	m.count = 0
	return discarded
}

// FrameUnavailable handles a tick that produced no frame. Verification never
// survives a missing frame.
func (m *Machine) FrameUnavailable() bool {
	return m.Reset()
}

// Apply changes verification settings. Disabling verification drops any
// candidate; other changes keep the current state.
func (m *Machine) Apply(settings Settings) {
	m.settings = normalize(settings)
	if !m.settings.Enabled {
		m.Reset()
	}
}

// Observe feeds one captured frame through the machine.
func (m *Machine) Observe(next *frame.Frame) Decision {
	if next == nil {
		m.FrameUnavailable()
		return Decision{Outcome: OutcomeNone}
	}
	if m.baseline == nil {
		m.Reset()
		m.baseline = next
		return Decision{Outcome: OutcomeCommit, Frame: next, First: true}
	}

	if m.state == Verifying && m.settings.Enabled {
		return m.verify(next)
	}

	if !m.cmp.IsChanged(m.baseline.Image, next.Image) {
		return Decision{Outcome: OutcomeNone}
	}
	if !m.settings.Enabled {
		m.baseline = next
		return Decision{Outcome: OutcomeCommit, Frame: next}
	}
	m.state = Verifying
	m.candidate = next
	m.count = 1
	return Decision{Outcome: OutcomeVerifying, Count: m.count, Target: m.target()}
}

func (m *Machine) verify(next *frame.Frame) Decision {
	if m.candidate == nil {
		m.Reset()
		return Decision{Outcome: OutcomeRejected}
	}
	if m.cmp.IsChanged(m.candidate.Image, next.Image) {
		m.Reset()
		return Decision{Outcome: OutcomeRejected}
	}
	m.count++
	if m.count < m.target() {
		return Decision{Outcome: OutcomeVerifying, Count: m.count, Target: m.target()}
	}
	committed := m.candidate
	m.baseline = committed
	m.Reset()
	return Decision{Outcome: OutcomeCommit, Frame: committed}
}

// Package playback drives a single audio asset: play and pause, elapsed and
// total time, seek by pointer position, the animated waveform and saving the
// asset to disk.
package playback

import (
	"fmt"
	"sync"
	"time"
)

// State describes where an asset is in its playback lifecycle.
type State string

const (
	// StateIdle means duration metadata has not arrived yet.
	StateIdle    State = "idle"
	StatePaused  State = "paused"
	StatePlaying State = "playing"
	// StateEnded behaves like StatePaused with the position reset to zero.
	StateEnded State = "ended"
)

// EventKind names an input to the machine.
type EventKind int

const (
	EventMetadataLoaded EventKind = iota + 1
	EventPositionTick
	EventEnded
	EventToggleRequested
	EventSeekRequested
)

func (k EventKind) String() string {
	switch k {
	case EventMetadataLoaded:
		return "metadata_loaded"
	case EventPositionTick:
		return "position_tick"
	case EventEnded:
		return "ended"
	case EventToggleRequested:
		return "toggle_requested"
	case EventSeekRequested:
		return "seek_requested"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one input. Only the fields of its kind are read.
type Event struct {
	Kind EventKind
	// Duration is carried by EventMetadataLoaded.
	Duration time.Duration
	// Position is carried by EventPositionTick.
	Position time.Duration
	// X and Width locate the pointer on the track for EventSeekRequested.
	X     float64
	Width float64
}

// MetadataLoaded is the event fired once the asset's duration is known.
func MetadataLoaded(d time.Duration) Event { return Event{Kind: EventMetadataLoaded, Duration: d} }

// PositionTick reports the asset's current position.
func PositionTick(p time.Duration) Event { return Event{Kind: EventPositionTick, Position: p} }

// Ended reports that the asset played to its end.
func Ended() Event { return Event{Kind: EventEnded} }

// Toggle flips between playing and paused.
func Toggle() Event { return Event{Kind: EventToggleRequested} }

// Seek moves to x/width of the track.
func Seek(x, width float64) Event { return Event{Kind: EventSeekRequested, X: x, Width: width} }

// Snapshot is the observable state after an event.
type Snapshot struct {
	State    State
	Position time.Duration
	Duration time.Duration
	// Playing is true in StatePlaying, and in StateIdle once play was requested
	// before metadata arrived.
	Playing bool
}

// Progress is position/duration, zero while the duration is unknown.
func (s Snapshot) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Position) / float64(s.Duration)
}

// Asset is the playable media behind a machine.
type Asset interface {
	Play() error
	Pause()
	SetPosition(time.Duration)
	Position() time.Duration
}

// Machine is the playback state machine. Events are applied one at a time.
type Machine struct {
	mu       sync.Mutex
	asset    Asset
	state    State
	position time.Duration
	duration time.Duration
	wantPlay bool
}

// NewMachine creates an idle machine for asset.
func NewMachine(asset Asset) *Machine {
	return &Machine{asset: asset, state: StateIdle}
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Handle applies ev and reports whether position, duration or the playing
// flag changed.
func (m *Machine) Handle(ev Event) (Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := m.snapshotLocked()
	var err error
	switch ev.Kind {
	case EventMetadataLoaded:
		m.onMetadata(ev.Duration)
	case EventPositionTick:
		m.onTick(ev.Position)
	case EventEnded:
		m.onEnded()
	case EventToggleRequested:
		err = m.onToggle()
	case EventSeekRequested:
		m.onSeek(ev.X, ev.Width)
	default:
		err = fmt.Errorf("invalid event: %s", ev.Kind)
	}
	after := m.snapshotLocked()
	return after, changed(before, after), err
}

func (m *Machine) onMetadata(d time.Duration) {
	if m.state != StateIdle || d <= 0 {
		return
	}
	m.duration = d
	if m.wantPlay {
		m.state = StatePlaying
		return
	}
	m.state = StatePaused
}

func (m *Machine) onTick(p time.Duration) {
	switch m.state {
	case StatePlaying, StatePaused:
		m.position = p
	}
}

func (m *Machine) onEnded() {
	if m.state != StatePlaying {
		return
	}
	m.state = StateEnded
	m.position = 0
	m.asset.SetPosition(0)
}

func (m *Machine) onToggle() error {
	switch m.state {
	case StatePlaying:
		m.asset.Pause()
		m.state = StatePaused
	case StatePaused, StateEnded:
		if err := m.asset.Play(); err != nil {
			return fmt.Errorf("play asset: %w", err)
		}
		m.state = StatePlaying
	case StateIdle:
		if m.wantPlay {
			m.asset.Pause()
			m.wantPlay = false
			return nil
		}
		if err := m.asset.Play(); err != nil {
			return fmt.Errorf("play asset: %w", err)
		}
		m.wantPlay = true
	}
	return nil
}

func (m *Machine) onSeek(x, width float64) {
	if m.state == StateIdle || m.duration <= 0 || width <= 0 {
		return
	}
	fraction := x / width
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	target := time.Duration(fraction * float64(m.duration))
	m.asset.SetPosition(target)
	m.position = target
	if m.state == StateEnded {
		m.state = StatePaused
	}
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		State:    m.state,
		Position: m.position,
		Duration: m.duration,
		Playing:  m.state == StatePlaying || (m.state == StateIdle && m.wantPlay),
	}
}

func changed(a, b Snapshot) bool {
	return a.Position != b.Position || a.Duration != b.Duration || a.Playing != b.Playing || a.State != b.State
}

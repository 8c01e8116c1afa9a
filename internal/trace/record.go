package trace

import (
	"time"

	"github.com/roach88/cascade/internal/action"
	"github.com/roach88/cascade/internal/phys"
)

// RunRecord is one row of the runs table: the reproduction recipe for a
// run plus roll-up counters and the final digest.
type RunRecord struct {
	RunID         string
	CreatedAt     time.Time
	Seed          int64
	EngineVersion string

	// Config is the run configuration serialized as JSON, stored as
	// loaded so replay can rebuild the exact same simulation.
	Config string

	Events       int
	Interactions int

	// Digest is empty until the run finishes.
	Digest string
}

// EventRecord summarizes one event of a run.
type EventRecord struct {
	RunID        string
	Event        int
	StartCount   int
	EndCount     int
	Interactions int
	Digest       string
}

// ParticleState is the kinematic snapshot of one participant of an
// interaction. Arena identifiers are deliberately absent: they are slot
// bookkeeping, not physics, and outgoing particles do not have one yet
// when the interaction is observed.
type ParticleState struct {
	PDG      phys.PDG        `json:"pdg"`
	Momentum phys.FourVector `json:"p"`
	Position phys.FourVector `json:"x"`
}

// InteractionRecord is one committed interaction: when it happened,
// which process resolved it, and the full in/out kinematics.
type InteractionRecord struct {
	RunID   string
	Event   int
	Seq     int
	Time    float64
	Process string
	In      []ParticleState
	Out     []ParticleState
	Digest  string
}

// NewInteractionRecord snapshots a committed action. Seq is the
// zero-based position of the interaction within its event, which the
// scheduler's deterministic commit order makes reproducible.
func NewInteractionRecord(runID string, event, seq int, act *action.Action) InteractionRecord {
	rec := InteractionRecord{
		RunID:   runID,
		Event:   event,
		Seq:     seq,
		Time:    act.Time,
		Process: string(act.Process),
		In:      make([]ParticleState, 0, len(act.In)),
		Out:     make([]ParticleState, 0, len(act.Outgoing)),
	}
	for _, p := range act.In {
		rec.In = append(rec.In, newParticleState(p))
	}
	for _, p := range act.Outgoing {
		rec.Out = append(rec.Out, newParticleState(p))
	}
	return rec
}

func newParticleState(p phys.Particle) ParticleState {
	return ParticleState{PDG: p.PDG, Momentum: p.Momentum, Position: p.Position}
}

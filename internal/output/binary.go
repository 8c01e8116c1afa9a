// Package output writes particle snapshots in the cascade binary block
// format: a self-describing header followed by one block per emission
// point (event start, every output interval, event end). The console
// measurement table is not here; the engine prints that itself through
// its report writer.
package output

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/roach88/cascade/internal/action"
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ensemble"
	"github.com/roach88/cascade/internal/phys"
)

// Format identification. FormatVersion bumps on any layout change;
// readers reject versions they do not know.
const (
	Magic         = "CSCD"
	FormatVersion = uint32(1)

	// FieldList documents the per-particle record layout in block
	// order. Stored in the header so files stay interpretable after
	// the layout evolves.
	FieldList = "id pdg t x y z E px py pz"
)

// Binary is an engine observer that streams snapshot blocks to w.
// All values are little-endian. Write failures cannot surface through
// observer hooks, so the first one is held and every later hook becomes
// a no-op; check Err after the run.
type Binary struct {
	w   io.Writer
	err error
}

var _ engine.Observer = (*Binary)(nil)

// NewBinary writes the file header and returns the observer.
func NewBinary(w io.Writer) (*Binary, error) {
	b := &Binary{w: w}
	if err := b.writeHeader(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Binary) writeHeader() error {
	if _, err := b.w.Write([]byte(Magic)); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := binary.Write(b.w, binary.LittleEndian, FormatVersion); err != nil {
		return fmt.Errorf("write format version: %w", err)
	}
	if err := writeString(b.w, engine.Version); err != nil {
		return fmt.Errorf("write engine version: %w", err)
	}
	if err := writeString(b.w, FieldList); err != nil {
		return fmt.Errorf("write field list: %w", err)
	}
	return nil
}

// AtEventStart implements engine.Observer.
func (b *Binary) AtEventStart(st *ensemble.Store, event int) {
	b.writeBlock(st, event)
}

// AtInteraction implements engine.Observer.
func (b *Binary) AtInteraction(act *action.Action) {}

// AtIntermediate implements engine.Observer.
func (b *Binary) AtIntermediate(st *ensemble.Store, event int, clk *engine.Clock) {
	b.writeBlock(st, event)
}

// AtEventEnd implements engine.Observer.
func (b *Binary) AtEventEnd(st *ensemble.Store, event int) {
	b.writeBlock(st, event)
}

// Err returns the first write failure, if any.
func (b *Binary) Err() error { return b.err }

// writeBlock emits one snapshot: npart, event, then the particles in
// arena slot order, which is deterministic for a given run.
func (b *Binary) writeBlock(st *ensemble.Store, event int) {
	if b.err != nil {
		return
	}
	if err := binary.Write(b.w, binary.LittleEndian, int32(st.Len())); err != nil {
		b.err = fmt.Errorf("write block size: %w", err)
		return
	}
	if err := binary.Write(b.w, binary.LittleEndian, int32(event)); err != nil {
		b.err = fmt.Errorf("write block event: %w", err)
		return
	}
	st.ForEach(func(_ ensemble.Handle, p phys.Particle) bool {
		if err := writeParticle(b.w, p); err != nil {
			b.err = err
			return false
		}
		return true
	})
}

func writeParticle(w io.Writer, p phys.Particle) error {
	ints := [2]int32{int32(p.ID), int32(p.PDG)}
	if err := binary.Write(w, binary.LittleEndian, ints); err != nil {
		return fmt.Errorf("write particle ids: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, [4]float64(p.Position)); err != nil {
		return fmt.Errorf("write particle position: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, [4]float64(p.Momentum)); err != nil {
		return fmt.Errorf("write particle momentum: %w", err)
	}
	return nil
}

// writeString emits a u32 length prefix followed by the raw bytes.
func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

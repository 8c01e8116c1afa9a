package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/cascade/internal/phys"
)

// Domain separation prefixes for digest computation.
// Each record kind hashes into its own domain so an interaction digest
// can never collide with an event digest over the same bytes.
const (
	interactionDomain = "cascade/interaction/v1"
	eventDomain       = "cascade/event/v1"
	runDomain         = "cascade/run/v1"
)

// hashWithDomain computes SHA-256 over domain || 0x00 || data and
// returns the lowercase hex encoding.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// InteractionDigest computes the content digest of an interaction from
// its position, time, process, and full in/out kinematics. The stored
// Digest field is ignored.
func InteractionDigest(rec InteractionRecord) (string, error) {
	payload := map[string]any{
		"event":   rec.Event,
		"seq":     rec.Seq,
		"time":    Float64(rec.Time),
		"process": rec.Process,
		"in":      statesPayload(rec.In),
		"out":     statesPayload(rec.Out),
	}
	data, err := MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalize interaction: %w", err)
	}
	return hashWithDomain(interactionDomain, data), nil
}

// EventDigest folds the ordered interaction digests of one event
// together with its particle counts.
func EventDigest(event, startCount, endCount int, interactionDigests []string) (string, error) {
	digests := make([]any, len(interactionDigests))
	for i, d := range interactionDigests {
		digests[i] = d
	}
	payload := map[string]any{
		"event":        event,
		"start_count":  startCount,
		"end_count":    endCount,
		"interactions": digests,
	}
	data, err := MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalize event: %w", err)
	}
	return hashWithDomain(eventDomain, data), nil
}

// RunDigest folds the ordered event digests into the run-level digest.
// Two runs with equal seeds, engine versions, and event digests are
// bit-identical replays of each other.
func RunDigest(seed int64, engineVersion string, eventDigests []string) (string, error) {
	digests := make([]any, len(eventDigests))
	for i, d := range eventDigests {
		digests[i] = d
	}
	payload := map[string]any{
		"seed":           seed,
		"engine_version": engineVersion,
		"events":         digests,
	}
	data, err := MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalize run: %w", err)
	}
	return hashWithDomain(runDomain, data), nil
}

func statesPayload(states []ParticleState) []any {
	out := make([]any, len(states))
	for i, st := range states {
		out[i] = map[string]any{
			"pdg": int32(st.PDG),
			"p":   fourVectorPayload(st.Momentum),
			"x":   fourVectorPayload(st.Position),
		}
	}
	return out
}

func fourVectorPayload(v phys.FourVector) []any {
	return []any{Float64(v[0]), Float64(v[1]), Float64(v[2]), Float64(v[3])}
}

// Package ensemble implements the arena-backed particle store at the center
// of the transport core.
//
// Records live in a slot array that grows geometrically while keeping slot
// indices stable. Removal tombstones a slot and pushes it on a freelist;
// insertion reuses the most recently freed slot before extending the arena.
// The store is therefore a dense arena with holes, and iteration order is
// slot order with holes skipped.
//
// External code never holds pointers into the arena. It holds Handles: a
// (slot, id, process id) triple captured at a point in time. A handle is
// valid only while the slot still carries the same record generation, so
// any commit that consumes a particle silently invalidates every handle
// that referred to it. This is what makes optimistic action scheduling
// safe: candidates carry handles, and staleness is detected by a cheap
// validity check instead of by locking.
package ensemble

// Package harness runs YAML scenarios against the evolution engine.
//
// A scenario pins a complete run configuration, including the seed, and
// declares what the run must produce. The harness builds the simulation,
// evolves it with a trace collector attached, and evaluates the declared
// expectations against the collected records.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: elastic-pair
//	description: "Two like-sign pions can only scatter elastically."
//	config:
//	  seed: 11
//	  events: 2
//	  modus:
//	    name: box
//	    length: 5
//	    particles:
//	      - pdg: 211
//	        count: 2
//	expect:
//	  - type: final_count
//	    count: 2
//	  - type: process_count
//	    process: decay
//	    count: 0
//	  - type: conserved
//
// The config block is merged over the package defaults, so a scenario
// states only what it cares about. Unknown keys are rejected. The seed
// must be pinned (seed >= 0): a scenario that depends on the wall clock
// is not a scenario.
//
// # Assertion Types
//
//   - final_count: live particle count at the end of every event
//   - interactions: total committed interactions across the run
//   - process_count: committed interactions carrying the named process
//   - conserved: four-momentum balance of the recorded interactions
//
// Counting assertions take either an exact count or an inclusive
// min/max range. Scenario outcomes can also be compared bit-for-bit
// against golden trace snapshots; see RunWithGolden.
package harness

package engine

// Version is the engine version recorded in traces and output headers.
// Runs are only digest-comparable within a version: any change to the
// propagation, collision finding, or sampling order bumps it.
const Version = "0.1.0"

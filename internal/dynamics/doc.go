// Package dynamics provides the built-in process physics: finders that
// detect decay and collision candidates over a tick window, and resolvers
// that realize committed candidates as final states. Finders attach their
// resolver to every candidate they emit, so the engine never needs to know
// which physics produced a given action.
package dynamics

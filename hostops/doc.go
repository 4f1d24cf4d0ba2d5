// Package hostops ships the host-operation providers a glyph-terminal
// module expects from its environment: console logging, persistent
// key/value storage, and a schedulable clock.
//
// Each provider implements bridge.Host and registers a namespace of
// functions callable from the module. Failures follow the boundary
// contract: the error is parked in the instance's pending-error channel
// and the module receives neutral results.
package hostops

// Package network queries the prover network's gRPC API for the latest proof
// request handled by a prover.
//
// The client speaks the wire format directly (protowire + a pass-through
// codec) so it does not depend on generated stubs. Only the handful of
// fields the monitor reads are decoded; everything else is skipped.
package network

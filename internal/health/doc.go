// Package health provides the liveness and readiness probes served on the
// ops listener.
//
// A [Probe] returns nil when healthy or an error naming the reason it is not.
// Probes compose with [All]; [Fixed] and [CheckFunc] build simple ones.
//
// [ShutdownGate] drives readiness across the process lifecycle: main drains
// it on SIGTERM so load balancers stop routing new requests while in-flight
// ones finish under their deadline.
package health

// Package healer implements the remediation engine: it classifies failing
// pods, deletes them under policy gates, verifies the replacement after a
// delay, and scales repeat offenders to zero behind a circuit breaker.
//
// All durable state is keyed by deployment identity (namespace, name, UID)
// so a deleted-and-recreated deployment starts with a clean record. Bare
// pods are observed but never remediated.
package healer

/*
Package storage provides durable state for Warden on top of BoltDB.

One database file holds seven buckets: per-deployment health records, open
pending-verification windows, the heal event log, the action audit log,
cooldown marks, policy overrides, and the healer lease. Health and pending
rows are keyed by the HealKey string form; the two log buckets are keyed by
timestamp so ranged TTL purges and newest-first listing are cursor walks.

Writes go through a bounded retry wrapper that absorbs transient lock
contention (3 attempts, 50/100/200ms backoff) and propagates every other
error immediately. Readers use plain View transactions and never retry.

The lease bucket implements single-healer ownership: AcquireLease performs
the read-check-write inside one Update transaction, so a stale lease is
reclaimed atomically and a live lease can only be refreshed by its owner.
*/
package storage

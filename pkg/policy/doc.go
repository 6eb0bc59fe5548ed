/*
Package policy resolves the engine's tunables with a three-tier precedence:
a persisted override (settable at runtime through the CLI or an admin
surface) wins over the environment (process env vars and config-file
values), which wins over the compiled default.

Every numeric and boolean read in the healer, diagnosis, and auto-ops paths
goes through this indirection, so thresholds, cooldowns, and toggles can be
retuned live without restarting the daemon. Override-store unavailability is
absorbed: resolution falls through to the next tier rather than failing.
*/
package policy

/*
Package types defines the shared domain types for Warden.

The central concept is the HealKey: remediation state is keyed by the owning
Deployment's stable identity (namespace, name, UID) rather than by pod name,
so that recreated deployments with a reused name do not inherit stale healer
history. Pods that have no resolvable Deployment owner are keyed individually.

State types (DeploymentHealth, PendingVerification, HealEvent, ActionAudit)
are persisted by pkg/storage; Suggestion and SuggestionsResp are the ephemeral
output of pkg/diagnose. All persisted types round-trip through JSON.
*/
package types

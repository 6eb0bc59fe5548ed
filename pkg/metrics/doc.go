/*
Package metrics exposes Prometheus instrumentation for Warden.

Collectors cover the healer scan loop (cycles, duration, actions by kind and
result, circuit opens, open pending windows), the diagnosis engine
(suggestions by rule and severity), auto-ops scale decisions, and alert
delivery. All collectors are registered at init; Handler serves them over
HTTP for the run daemon.
*/
package metrics

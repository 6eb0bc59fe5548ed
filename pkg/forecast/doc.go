/*
Package forecast defines the band input consumed by the diagnosis engine: a
predicted time series with per-point confidence bounds, the history it was
derived from, and typed workload metadata (resolved limit, controller
identity, peer usage, current replicas).

The Provider interface hides the forecasting model; HTTPProvider talks to an
external forecaster, StaticProvider serves canned bands for tests. Helpers
compute the band peak, the trailing sustain duration above a threshold, and
the synthetic request/limit estimate used when a workload has no configured
CPU limit.
*/
package forecast

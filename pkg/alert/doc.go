/*
Package alert delivers best-effort notifications from the remediation
engine. The Sink interface is fire-and-forget: a failed delivery is logged
and counted but never surfaces to the caller, so alerting outages cannot
abort a scan pass or an auto-ops execution.
*/
package alert

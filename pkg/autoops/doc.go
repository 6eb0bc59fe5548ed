// Package autoops turns predictive pod-CPU diagnoses into deployment scale
// actions, gated by a dedicated cooldown domain and a global execute flag.
package autoops

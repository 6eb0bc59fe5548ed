/*
Package diagnose turns forecast bands into scored, auditable suggestions.

The engine holds an ordered list of independent rules, fixed at
construction. Each rule is a pure function of the diagnosis context; it may
decline (nil) or fire a suggestion, and every fired suggestion is collected,
so one call can produce several. Suggestions always carry the raw measured
numbers in their evidence map, not just the verdict.

Three target kinds are supported: node CPU and node memory (flat percentage
threshold with a sustain requirement) and pod CPU (escalating ratios of the
workload's CPU limit). When no limit is configured, a synthetic one is
estimated from usage history and every suggestion is annotated as estimated
rather than configured.

Replica deltas for the triggered-scale rule come from the stair function;
a linear strategy is named but intentionally not implemented.
*/
package diagnose

/*
Package events provides an in-process broker for remediation lifecycle
events. The healer and auto-ops publish; subscribers (the CLI event stream,
tests) receive on buffered channels. Delivery is best-effort: a subscriber
with a full buffer is skipped rather than blocking the publisher.
*/
package events

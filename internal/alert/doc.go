// Package alert turns imbalance signals into deliverable notifications.
//
// The Emitter keeps the last alerted direction per symbol and suppresses
// consecutive alerts in the same direction. The state resets when the
// opposite direction fires or when a cycle produces no signal (Clear).
//
// Suppression state is updated before delivery, so a failed send is not
// retried on the next cycle.
package alert

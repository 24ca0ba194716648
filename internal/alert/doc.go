// Package alert turns prover records into notifier messages.
package alert

// Package prover holds the domain model shared by the fetcher, the
// formatter and the polling loop: fulfillment statuses, the record returned
// for a prover, and the key used to detect changes between polls.
package prover

// Package notifier delivers monitor messages to chat channels.
//
// A Message is either plain text, rich embeds, or both. Sinks (Discord
// webhook, Telegram bot) implement Notifier and make exactly one delivery
// attempt per call; there is no retry and no batching. Decorators add
// cross-cutting behavior without changing that contract:
//
//   - Limited waits on a token bucket before delivering.
//   - Multi fans a message out to several sinks and joins their errors.
//   - Recorder appends every attempt to the history store.
package notifier

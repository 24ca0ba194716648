// Package schedule parses heartbeat and poll cadences.
//
// A cadence is either a fixed interval ("3600", "1h", "01:00") or a cron
// expression ("0 * * * *", "@hourly"). Both are exposed as a robfig/cron
// Schedule so callers only ever ask for the next activation.
package schedule

// Package crontask provides an async provider that fires on a cron schedule.
//
// Expressions are parsed with github.com/robfig/cron/v3 and accept an
// optional leading seconds field as well as descriptors such as "@hourly"
// and "@every 5m". Each firing arms a single one-shot action for the next
// matching time, so a task never holds more than one pending action.
package crontask

// Package logx is the structured logger used across goasync.
//
// It is a thin layer over zerolog: fields are functions that mutate an event,
// derived loggers carry fixed fields, and the zero value (or Nop) discards
// everything so library components can log unconditionally.
package logx

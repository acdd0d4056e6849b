// Package logx wraps zerolog behind a small value-type Logger.
//
// The Service variant keeps loggers "live": Apply() swaps sinks and levels
// at runtime without re-plumbing loggers through the app.
package logx

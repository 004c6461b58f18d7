// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package log is the node's single logging entrypoint, wrapping
// go.uber.org/zap behind named child loggers — one per component — the
// way the teacher's log/v3 package wraps zap for erigon's subsystems.
package log

import (
	"os"

	"go.uber.org/zap"
)

var root *zap.SugaredLogger

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	root = l.Sugar()
}

// SetLevel swaps the root logger for one capped at level ("debug", "info",
// "warn", "error"), used by cmd/gaion to apply the config-file log level.
func SetLevel(level string) {
	var lvl zap.AtomicLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zap.NewAtomicLevel()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	l, err := cfg.Build()
	if err != nil {
		return
	}
	root = l.Sugar()
}

// Logger is a named child logger bound to one component (e.g. "state",
// "verification", "miner", "p2p").
type Logger struct {
	name string
	s    *zap.SugaredLogger
}

func New(component string) *Logger {
	return &Logger{name: component, s: root.With("component", component)}
}

func (l *Logger) Trace(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l *Logger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }

// Crit logs at error level, flushes, and terminates the process. Reserved
// for the fatal store errors spec §4.1/§7 describe: "write errors are
// fatal and must propagate".
func (l *Logger) Crit(msg string, kv ...interface{}) {
	l.s.Errorw(msg, kv...)
	_ = l.s.Sync()
	os.Exit(1)
}

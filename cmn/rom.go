// Package cmn provides the receiver's configuration: sizing knobs for the
// live-heap table, chunk window, and ring buffers, plus a hot-reloadable
// global handle in the style of a read-mostly config singleton.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

// read-mostly, most often consulted fields: copied from the config on every
// Set(cfg), so a reader avoids an atomic.Pointer load and a field walk. Until
// the first Set, both fields are zero.

type readMostly struct {
	level, modules int
}

var Rom readMostly

func (rom *readMostly) Set(cfg *Config) {
	rom.level = cfg.Log.Level
	rom.modules = cfg.Log.Modules
}

// FastV reports whether logging at the given verbosity level, or gated by
// the given module flag, is enabled. Nothing in this module calls it;
// the recv and udpsource log calls are not gated by it.
func (rom *readMostly) FastV(verbosity, fl int) bool {
	return rom.level >= verbosity || rom.modules&fl != 0
}

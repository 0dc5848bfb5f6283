//go:build !mono

// Package mono provides a nanosecond clock for latency and idle-timer
// bookkeeping elsewhere in the module; it is monotonic only under the "mono"
// build tag.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

// NanoTime returns the wall-clock time in nanoseconds since the Unix epoch.
// This fallback is not monotonic: a wall-clock step shows up in the deltas.
func NanoTime() int64 { return time.Now().UnixNano() }

// Package alloc provides the owning-buffer allocators the receive engine
// uses for chunk data and present arrays: a plain heap allocator and an
// mmap-backed one, mirroring original_source's memory_allocator /
// mmap_allocator pair.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package alloc

// Buffer is an owning allocation: Bytes is valid until Release is called.
// Release may be called more than once; only the first call frees anything.
// Deleters capture a reference to their allocator so a Buffer may outlive
// the Allocator handle that produced it (spec.md §9 "shared ownership").
type Buffer struct {
	Bytes   []byte
	release func()
	done    bool
}

func (b *Buffer) Release() {
	if b.done {
		return
	}
	b.done = true
	if b.release != nil {
		b.release()
	}
}

// Allocator is the AllocatorIface named in spec.md §6.
type Allocator interface {
	Allocate(size int) (Buffer, error)
}

// HeapAllocator allocates plain Go heap memory. When Prefault is set, every
// page of a fresh buffer is touched once at allocation time so the first
// real write doesn't take a page fault on the hot path, mirroring
// original_source/src/common_memory_allocator.h's prefault option.
type HeapAllocator struct {
	Prefault bool
	PageSize int // defaults to 4096 if unset
}

func (a *HeapAllocator) Allocate(size int) (Buffer, error) {
	buf := make([]byte, size)
	if a.Prefault {
		page := a.PageSize
		if page <= 0 {
			page = 4096
		}
		for i := 0; i < len(buf); i += page {
			buf[i] = 0
		}
	}
	return Buffer{Bytes: buf}, nil
}

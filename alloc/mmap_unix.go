//go:build linux

package alloc

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MmapAllocator allocates anonymous mmap regions, mirroring
// original_source/src/common_memory_allocator.h's mmap_allocator. Populate
// pre-faults every page at mmap time (MAP_POPULATE); HugeTLB requests huge
// pages (MAP_HUGETLB), and the allocation fails if the mmap cannot get them;
// Lock mlocks the region best-effort -- a failure to lock memory does not
// fail the allocation.
type MmapAllocator struct {
	Populate bool
	HugeTLB  bool
	Lock     bool
}

func (a *MmapAllocator) Allocate(size int) (Buffer, error) {
	if size <= 0 {
		return Buffer{}, errors.New("alloc: mmap size must be positive")
	}
	flags := unix.MAP_PRIVATE | unix.MAP_ANONYMOUS
	if a.Populate {
		flags |= unix.MAP_POPULATE
	}
	if a.HugeTLB {
		flags |= unix.MAP_HUGETLB
	}
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil {
		return Buffer{}, errors.Wrap(err, "alloc: mmap failed")
	}
	if a.Lock {
		_ = unix.Mlock(buf) // best-effort: RLIMIT_MEMLOCK may forbid this
	}

	released := false
	return Buffer{
		Bytes: buf,
		release: func() {
			if released {
				return
			}
			released = true
			if a.Lock {
				_ = unix.Munlock(buf)
			}
			_ = unix.Munmap(buf)
		},
	}, nil
}

//go:build !linux

package alloc

import "github.com/pkg/errors"

// MmapAllocator is a Linux-only facility (unix.Mmap / MAP_HUGETLB /
// mlock semantics are not portable); non-Linux builds fail fast rather than
// silently degrade to a heap allocation a caller didn't ask for.
type MmapAllocator struct {
	Populate bool
	HugeTLB  bool
	Lock     bool
}

func (a *MmapAllocator) Allocate(int) (Buffer, error) {
	return Buffer{}, errors.New("alloc: MmapAllocator is only available on linux")
}

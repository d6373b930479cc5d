// Package mempool pools the large index buffers of the compositor's parallel
// path so repeated runs do not reallocate a fragment per camera.
package mempool

import (
	"sync"
)

var intPools sync.Map // key: size class (int), value: *sync.Pool

// sizeClass rounds n up to the next multiple of 1024 to reduce churn.
func sizeClass(n int) int {
	if n <= 1024 {
		return 1024
	}
	const step = 1024
	r := (n + step - 1) / step
	return r * step
}

func intPool(cls int) *sync.Pool {
	pAny, _ := intPools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]int, cls) }})
	return pAny.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// GetInts retrieves an []int buffer of n elements from the pool. Contents
// are not zeroed. The caller must return it via PutInts when done.
func GetInts(n int) []int {
	cls := sizeClass(n)
	buf, ok := intPool(cls).Get().([]int)
	if !ok || cap(buf) < cls {
		buf = make([]int, cls)
	}
	return buf[:n]
}

// PutInts returns a buffer to the pool. It is safe to pass a nil slice.
// Buffers whose capacity is not a size class are dropped.
func PutInts(buf []int) {
	if buf == nil || sizeClass(cap(buf)) != cap(buf) {
		return
	}
	intPool(cap(buf)).Put(buf[:cap(buf)]) //nolint:staticcheck // slices are pooled by value
}

package rushtpl

import (
	"bytes"
	"strings"
	"sync"
)

// ----------------------------- Buffer pools ---------------------------------

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

var stringBuilderPool = sync.Pool{
	New: func() any { return &strings.Builder{} },
}

func getBuffer() *bytes.Buffer {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// putBuffer returns buf to the pool. Oversized buffers are dropped so one huge
// render does not pin its memory.
func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1<<20 {
		return
	}
	bufPool.Put(buf)
}

// WarmupPools pre-allocates render buffers of a common size.
func WarmupPools() {
	for i := 0; i < 10; i++ {
		buf := bufPool.Get().(*bytes.Buffer)
		buf.Grow(1024)
		bufPool.Put(buf)
	}
}

package codec

import (
	"bufio"
	"bytes"
	"io"
	"sync"
)

const writerBufferSize = 32 * 1024

var writerPool = sync.Pool{
	New: func() any {
		return bufio.NewWriterSize(nil, writerBufferSize)
	},
}

// getWriter returns a pooled buffered writer over w, or nil when w already
// buffers its writes.
func getWriter(w io.Writer) *bufio.Writer {
	switch w.(type) {
	case *bytes.Buffer, *bufio.Writer:
		return nil
	}
	bw := writerPool.Get().(*bufio.Writer)
	bw.Reset(w)
	return bw
}

func putWriter(bw *bufio.Writer) {
	if bw == nil {
		return
	}
	bw.Reset(nil)
	writerPool.Put(bw)
}

var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// putBuffer drops oversized buffers so one large message does not pin
// memory in the pool.
func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1<<20 {
		return
	}
	bufferPool.Put(buf)
}

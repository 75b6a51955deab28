package bridge

import (
	"os"

	"github.com/wippyai/callwire/errors"
)

// window holds the bytes of an exchange file for the result decoder.
type window interface {
	Bytes() []byte
	Close() error
}

type heapWindow []byte

func (w heapWindow) Bytes() []byte { return w }
func (heapWindow) Close() error    { return nil }

func openWindow(path string, mmap bool) (window, error) {
	if mmap {
		return mapFile(path)
	}
	return readFile(path)
}

func readFile(path string) (window, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read exchange file "+path, err)
	}
	return heapWindow(data), nil
}

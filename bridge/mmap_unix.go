//go:build darwin || linux

package bridge

import (
	"golang.org/x/sys/unix"

	"github.com/wippyai/callwire/errors"
)

// mappedWindow is a read-only shared mapping of an exchange file.
type mappedWindow struct {
	data []byte
}

func (w *mappedWindow) Bytes() []byte { return w.data }

func (w *mappedWindow) Close() error {
	if w.data == nil {
		return nil
	}
	err := unix.Munmap(w.data)
	w.data = nil
	if err != nil {
		return errors.Load("unmap exchange file", err)
	}
	return nil
}

func mapFile(path string) (window, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Load("open exchange file "+path, err)
	}
	// The mapping stays valid after the descriptor is closed.
	defer unix.Close(fd)

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return nil, errors.Load("stat exchange file "+path, err)
	}
	if stat.Size == 0 {
		return heapWindow(nil), nil
	}

	data, err := unix.Mmap(fd, 0, int(stat.Size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Load("map exchange file "+path, err)
	}
	return &mappedWindow{data: data}, nil
}

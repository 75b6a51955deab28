//go:build !(darwin || linux)

package bridge

func mapFile(path string) (window, error) {
	return readFile(path)
}

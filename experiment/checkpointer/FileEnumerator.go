package checkpointer

import (
	"fmt"
	"path/filepath"
)

// fileEnumerator enumerates filenames
type fileEnumerator struct {
	i         int
	name      string
	extension string
}

// filename returns the name of the next consecutive enumerated file
func (f *fileEnumerator) filename() string {
	f.i++
	return fmt.Sprintf("%v%v%v", f.name, f.i, f.extension)
}

// FilenameEnumerator returns a function which will return filenames
// with a counter integer suffix. Each time the returned function is
// called, the filename counter suffix will be one higher than on the
// previous call, starting at start+1. The filename parameter is the
// full filename with its path, while the extension parameter
// determines the file extension.
func FilenameEnumerator(start int, filename, extension string) func() string {
	enum := fileEnumerator{i: start, name: filename, extension: extension}

	return enum.filename
}

// Latest returns the enumerated file with the highest counter in
// the sequence started by FilenameEnumerator(0, filename, extension),
// or false if no such file exists.
func Latest(filename, extension string) (string, bool, error) {
	matches, err := filepath.Glob(filename + "*" + extension)
	if err != nil {
		return "", false, fmt.Errorf("latest: %w", err)
	}

	best, bestIndex := "", 0
	for _, m := range matches {
		var i int
		n, err := fmt.Sscanf(m[len(filename):len(m)-len(extension)], "%d", &i)
		if err != nil || n != 1 {
			continue
		}
		if i > bestIndex {
			best, bestIndex = m, i
		}
	}
	return best, best != "", nil
}

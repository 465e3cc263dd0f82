package proxy

import (
	"bufio"
	"fmt"
	"os"
)

// LoadFile adds the proxies listed in path, one per line. Blank lines and
// lines starting with '#' are ignored.
func (pl *Pool) LoadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open proxy file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("read proxy file: %w", err)
	}
	return pl.AddAll(lines)
}

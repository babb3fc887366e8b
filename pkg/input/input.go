package input

import (
	"bufio"
	"io"
	"os"
	"strings"
)

const maxLineSize = 1 << 20

// Loader reads URLs one per line, skipping blank lines and # comments
type Loader struct{}

// NewLoader creates loader
func NewLoader() *Loader {
	return &Loader{}
}

// Open opens filePath for reading (use "-" for stdin)
func (l *Loader) Open(filePath string) (io.ReadCloser, error) {
	if filePath == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(filePath)
}

// Each calls fn for every URL in r, stopping at the first error
func (l *Loader) Each(r io.Reader, fn func(url string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Load loads all URLs from file
func (l *Loader) Load(filePath string) ([]string, error) {
	file, err := l.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var urls []string
	err = l.Each(file, func(url string) error {
		urls = append(urls, url)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return urls, nil
}

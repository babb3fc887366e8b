package input

import (
	"errors"
	"os"
	"strings"
	"testing"
)

func TestLoaderLoad(t *testing.T) {
	tmpFile, err := os.CreateTemp(t.TempDir(), "test_*.txt")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	testData := `
https://example.com/
# comment
https://test.org/page?a=1
  https://spaces.com/  
`
	if _, err := tmpFile.WriteString(testData); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	tmpFile.Close()

	l := NewLoader()
	urls, err := l.Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	expected := []string{"https://example.com/", "https://test.org/page?a=1", "https://spaces.com/"}
	if len(urls) != len(expected) {
		t.Fatalf("Load = %d, want %d", len(urls), len(expected))
	}
	for i := range expected {
		if urls[i] != expected[i] {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], expected[i])
		}
	}
}

func TestLoaderLoadMissing(t *testing.T) {
	if _, err := NewLoader().Load("/nonexistent/urls.txt"); err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestLoaderEachStops(t *testing.T) {
	stop := errors.New("stop")
	seen := 0

	err := NewLoader().Each(strings.NewReader("a\nb\nc\n"), func(string) error {
		seen++
		if seen == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Errorf("Each() error = %v, want stop", err)
	}
	if seen != 2 {
		t.Errorf("Each() visited %d lines, want 2", seen)
	}
}

package preflight

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "index.html")
	if err := os.WriteFile(file, []byte("<html></html>"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if err := Directory("distribution directory", dir); err != nil {
		t.Fatalf("expected existing directory to pass, got %v", err)
	}

	tests := []struct {
		name string
		path string
		want error
	}{
		{name: "missing", path: filepath.Join(dir, "missing"), want: ErrNotFound},
		{name: "file", path: file, want: ErrNotDirectory},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Directory("distribution directory", tc.path)

			var pre *Error
			if !errors.As(err, &pre) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if pre.Target != tc.path {
				t.Fatalf("expected target %s, got %s", tc.path, pre.Target)
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

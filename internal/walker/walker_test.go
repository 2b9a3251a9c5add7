package walker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func collect(t *testing.T, root string, patterns []string) []string {
	t.Helper()
	files, errs := Walk(context.Background(), root, patterns)
	var got []string
	for f := range files {
		got = append(got, f.RelPath)
	}
	if err := <-errs; err != nil {
		t.Fatalf("walk: %v", err)
	}
	sort.Strings(got)
	return got
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.py", "print(1)\n")
	writeFile(t, root, "pkg/util.go", "package pkg\n")
	writeFile(t, root, "notes.txt", "not matched\n")
	writeFile(t, root, "empty.py", "")
	writeFile(t, root, "node_modules/dep/index.js", "x\n")
	writeFile(t, root, ".git/config.py", "x\n")
	writeFile(t, root, "generated/out.py", "x\n")
	writeFile(t, root, "docs/Dockerfile", "FROM scratch\n")
	writeFile(t, root, IgnoreFile, "# comment\ngenerated/\n")

	got := collect(t, root, []string{"*.py", "*.go", "*.js", "Dockerfile"})
	want := []string{"docs/Dockerfile", "main.py", "pkg/util.go"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWalk_skipsSymlinksAndLargeFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "real.py", "x = 1\n")
	writeFile(t, root, "big.py", strings.Repeat("a", maxFileSize+1))

	other := t.TempDir()
	writeFile(t, other, "linked.py", "y = 2\n")
	if err := os.Symlink(other, filepath.Join(root, "linkdir")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "real.py"), filepath.Join(root, "alias.py")); err != nil {
		t.Fatal(err)
	}

	got := collect(t, root, []string{"*.py"})
	if len(got) != 1 || got[0] != "real.py" {
		t.Errorf("got %v, want [real.py]", got)
	}
}

func TestWalk_missingRoot(t *testing.T) {
	files, errs := Walk(context.Background(), filepath.Join(t.TempDir(), "nope"), []string{"*"})
	for range files {
	}
	err := <-errs
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestWalk_cancelled(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 10; i++ {
		writeFile(t, root, filepath.Join("d", string(rune('a'+i))+".py"), "x\n")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	files, errs := Walk(ctx, root, []string{"*.py"})
	for range files {
	}
	if err := <-errs; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDecodeText(t *testing.T) {
	t.Run("utf8", func(t *testing.T) {
		got, err := DecodeText([]byte("héllo"))
		if err != nil || got != "héllo" {
			t.Errorf("got %q, %v", got, err)
		}
	})
	t.Run("bom", func(t *testing.T) {
		got, err := DecodeText(append([]byte{0xEF, 0xBB, 0xBF}, "x = 1"...))
		if err != nil || got != "x = 1" {
			t.Errorf("got %q, %v", got, err)
		}
	})
	t.Run("latin1", func(t *testing.T) {
		// "café" in ISO-8859-1 / windows-1252.
		got, err := DecodeText([]byte{'c', 'a', 'f', 0xE9})
		if err != nil || got != "café" {
			t.Errorf("got %q, %v", got, err)
		}
	})
	t.Run("binary", func(t *testing.T) {
		if _, err := DecodeText([]byte{0x7f, 'E', 'L', 'F', 0, 0, 1}); !errors.Is(err, ErrBinary) {
			t.Errorf("expected ErrBinary, got %v", err)
		}
	})
}

func TestMatch(t *testing.T) {
	patterns := []string{"*.py", "Dockerfile"}
	for name, want := range map[string]bool{
		"a.py":           true,
		"Dockerfile":     true,
		"Dockerfile.dev": false,
		"a.pyc":          false,
	} {
		if got := Match(name, patterns); got != want {
			t.Errorf("Match(%q) = %v, want %v", name, got, want)
		}
	}
}

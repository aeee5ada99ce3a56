package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestResolveExistingDirectory(t *testing.T) {
	dir := t.TempDir()
	got, err := Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve(%q) error = %v", dir, err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("Resolve() = %q, want absolute path", got)
	}
}

func TestResolveEmptyUsesWorkingDirectory(t *testing.T) {
	got, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve(\"\") error = %v", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want, err := filepath.EvalSymlinks(wd)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("Resolve(\"\") = %q, want %q", got, want)
	}
}

func TestResolveMissingPath(t *testing.T) {
	_, err := Resolve(filepath.Join(t.TempDir(), "does-not-exist"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(missing) = %v, want ErrNotFound", err)
	}
}

func TestResolveFileIsInvalid(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Resolve(f)
	if !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Resolve(file) = %v, want ErrInvalidPath", err)
	}
}

func TestResolveNulByte(t *testing.T) {
	_, err := Resolve("/tmp/bad\x00path")
	if !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Resolve(NUL) = %v, want ErrInvalidPath", err)
	}
}

func TestResolveSymlinkAliases(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "alias")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	viaTarget, err := Resolve(target)
	if err != nil {
		t.Fatalf("Resolve(target) error = %v", err)
	}
	viaLink, err := Resolve(link)
	if err != nil {
		t.Fatalf("Resolve(link) error = %v", err)
	}
	if viaTarget != viaLink {
		t.Errorf("aliases resolve differently: %q vs %q", viaTarget, viaLink)
	}
}

func TestResolveRelativePath(t *testing.T) {
	got, err := Resolve(".")
	if err != nil {
		t.Fatalf("Resolve(\".\") error = %v", err)
	}
	want, err := Resolve("")
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("Resolve(\".\") = %q, want %q", got, want)
	}
}

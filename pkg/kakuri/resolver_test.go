package kakuri

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/unfaded/kakuri/pkg/config"
	"github.com/unfaded/kakuri/pkg/types"
)

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveCommandFromPath(t *testing.T) {
	bin := t.TempDir()
	want := writeExecutable(t, bin, "mytool")
	t.Setenv("PATH", bin)

	got, err := ResolveCommand("mytool")
	if err != nil {
		t.Fatalf("ResolveCommand: %v", err)
	}
	if got != want {
		t.Errorf("resolved %q, want %q", got, want)
	}
}

func TestResolveCommandNotFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := ResolveCommand("definitely-not-here")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveCommandVerbatimWithSlash(t *testing.T) {
	got, err := ResolveCommand("/opt/custom/tool")
	if err != nil {
		t.Fatalf("ResolveCommand: %v", err)
	}
	if got != "/opt/custom/tool" {
		t.Errorf("slash command rewritten to %q", got)
	}
}

func TestResolveCommandTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ResolveCommand("~/bin/tool")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(home, "bin", "tool") {
		t.Errorf("tilde command resolved to %q", got)
	}
}

func TestDetectPathArguments(t *testing.T) {
	base := t.TempDir()
	sub := filepath.Join(base, "project")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	script := filepath.Join(sub, "script.py")
	if err := os.WriteFile(script, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	mounts := DetectPathArguments([]string{script, sub, "/does/not/exist", "-v", "plainword"})

	if len(mounts) != 2 {
		t.Fatalf("detected %d mounts, want 2: %+v", len(mounts), mounts)
	}
	// A file argument mounts its parent directory so sibling includes
	// still resolve.
	if mounts[0].Source != sub || mounts[0].Destination != sub {
		t.Errorf("file argument mounted %+v, want parent %s", mounts[0], sub)
	}
	if mounts[1].Source != sub {
		t.Errorf("directory argument mounted %+v", mounts[1])
	}
}

func TestDetectPathArgumentsReadOnlyOutsideHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	inside := filepath.Join(home, "notes")
	if err := os.MkdirAll(inside, 0o755); err != nil {
		t.Fatal(err)
	}
	outside := t.TempDir()

	mounts := DetectPathArguments([]string{inside, outside})
	if len(mounts) != 2 {
		t.Fatalf("detected %d mounts, want 2", len(mounts))
	}
	if mounts[0].ReadOnly {
		t.Error("path under home should be writable")
	}
	if !mounts[1].ReadOnly {
		t.Error("path outside home should be read-only")
	}
}

func TestResolveMountsOrderingAndOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	profileDir := filepath.Join(home, ".cache")
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		t.Fatal(err)
	}
	dataDir := filepath.Join(home, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		BindProfiles: map[string][]string{
			"minimal": {"~/.cache"},
		},
	}

	explicit := []types.BindMount{
		{Source: dataDir, Destination: profileDir, ReadOnly: true},
	}

	mounts, err := ResolveMounts(cfg, []string{"minimal"}, nil, explicit)
	if err != nil {
		t.Fatalf("ResolveMounts: %v", err)
	}

	// The explicit entry shares the profile entry's destination, so
	// the two collapse keeping the explicit (last) one.
	if len(mounts) != 1 {
		t.Fatalf("got %d mounts, want 1: %+v", len(mounts), mounts)
	}
	if mounts[0].Source != dataDir || !mounts[0].ReadOnly {
		t.Errorf("explicit mount did not win: %+v", mounts[0])
	}
}

func TestResolveMountsUnknownProfile(t *testing.T) {
	cfg := &config.Config{BindProfiles: map[string][]string{}}

	_, err := ResolveMounts(cfg, []string{"nope"}, nil, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown profile, got %v", err)
	}
}

func TestResolveMountsRejectsRootDestination(t *testing.T) {
	cfg := &config.Config{}
	src := t.TempDir()

	_, err := ResolveMounts(cfg, nil, nil, []types.BindMount{{Source: src, Destination: "/"}})
	var usage *UsageError
	if !errors.As(err, &usage) {
		t.Errorf("expected usage error for / destination, got %v", err)
	}
}

func TestResolveMountsMissingSource(t *testing.T) {
	cfg := &config.Config{}

	_, err := ResolveMounts(cfg, nil, nil, []types.BindMount{
		{Source: "/no/such/source", Destination: "/dst"},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing source, got %v", err)
	}
}

func TestResolveMountsDeterministic(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	for _, d := range []string{".cache", ".config", "work"} {
		if err := os.MkdirAll(filepath.Join(home, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	cfg := &config.Config{
		BindProfiles: map[string][]string{
			"dev": {"~/.cache", "~/.config"},
		},
	}
	args := []string{filepath.Join(home, "work")}
	explicit := []types.BindMount{{Source: filepath.Join(home, "work"), Destination: "/w"}}

	first, err := ResolveMounts(cfg, []string{"dev"}, args, explicit)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ResolveMounts(cfg, []string{"dev"}, args, explicit)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("resolver output is not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestResolveSessionNeverMountsProgram(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	k := &Kakuri{Config: &config.Config{}}
	sess, err := k.resolveSession(Invocation{Command: []string{"/bin/echo", "hi"}})
	if err != nil {
		t.Fatalf("resolveSession: %v", err)
	}

	for _, m := range sess.Mounts {
		if m.Source == "/bin" || m.Source == "/bin/echo" {
			t.Errorf("argv[0] was promoted to a mount: %+v", m)
		}
	}
}

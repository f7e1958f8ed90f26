package tools

import (
	"testing"
)

func TestMountedUnderProc(t *testing.T) {
	t.Parallel()

	mounts, err := MountedUnder("/proc")
	if err != nil {
		t.Fatalf("MountedUnder: %v", err)
	}

	found := false
	for _, m := range mounts {
		if m == "/proc" {
			found = true
		}
	}
	if !found {
		t.Error("/proc not reported as mounted under itself")
	}
}

func TestMountedUnderUnmountedPath(t *testing.T) {
	t.Parallel()

	mounts, err := MountedUnder(t.TempDir())
	if err != nil {
		t.Fatalf("MountedUnder: %v", err)
	}
	if len(mounts) != 0 {
		t.Errorf("fresh temp dir reports mounts: %v", mounts)
	}
}

func TestUnmountUnderNothingMounted(t *testing.T) {
	t.Parallel()

	if err := UnmountUnder(t.TempDir()); err != nil {
		t.Errorf("UnmountUnder on an empty dir: %v", err)
	}
}

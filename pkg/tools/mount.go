package tools

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

// MountedUnder returns the mount points at or below root, read from
// /proc/mounts. Octal escapes in mount points are left as-is; kakuri
// never creates paths that need them.
func MountedUnder(root string) (mounts []string, err error) {
	file, err := os.Open("/proc/mounts")
	if err != nil {
		return nil, fmt.Errorf("error opening /proc/mounts: %w", err)
	}
	defer file.Close()

	prefix := strings.TrimSuffix(root, "/") + "/"
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		target := fields[1]
		if target == root || strings.HasPrefix(target, prefix) {
			mounts = append(mounts, target)
		}
	}
	return mounts, scanner.Err()
}

// UnmountUnder unmounts everything mounted at or below root, deepest
// first. A busy mount is retried with a lazy detach; the first target
// that still cannot be unmounted is reported.
func UnmountUnder(root string) error {
	mounts, err := MountedUnder(root)
	if err != nil {
		return err
	}

	sort.Slice(mounts, func(i, j int) bool {
		return strings.Count(mounts[i], "/") > strings.Count(mounts[j], "/")
	})

	for _, target := range mounts {
		if err := unix.Unmount(target, 0); err != nil {
			if err = unix.Unmount(target, unix.MNT_DETACH); err != nil {
				return fmt.Errorf("cannot unmount %s: %w", target, err)
			}
		}
	}
	return nil
}

package kakuri

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/unfaded/kakuri/pkg/types"
)

// oldRootDir is the stub directory pivot_root parks the previous root
// under until it is detached.
const oldRootDir = ".old_root"

// AssembleFilesystem builds the container root inside the already
// unshared mount namespace and leaves the calling process rooted at
// the merged directory. The ordering is the mount protocol: private
// propagation, overlay, binds, kernel filesystems, pivot. Each step
// reports a MountError naming itself; mounts made so far die with the
// namespace, so there is no in-process unwinding to do here.
func AssembleFilesystem(layout OverlayLayout, mounts []types.BindMount) error {
	if err := makeTreePrivate(); err != nil {
		return err
	}
	if err := mountOverlay(layout); err != nil {
		return err
	}
	for _, b := range mounts {
		if err := applyBindMount(layout.MergedDir, b); err != nil {
			return err
		}
	}
	if err := mountKernelFilesystems(layout.MergedDir); err != nil {
		return err
	}
	return pivotIntoRoot(layout.MergedDir)
}

// makeTreePrivate stops mount propagation back to the host before any
// other mount operation runs.
func makeTreePrivate() error {
	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return &MountError{Step: "private-propagation", Err: err}
	}
	return nil
}

// mountOverlay stacks the writable upper layer over the read-only host
// root. The userxattr option is required for unprivileged overlay
// mounts on current kernels.
func mountOverlay(layout OverlayLayout) error {
	for _, dir := range []string{layout.UpperDir, layout.WorkDir, layout.MergedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &MountError{Step: "overlay-dirs", Err: err}
		}
	}

	opts := fmt.Sprintf("lowerdir=/,upperdir=%s,workdir=%s,userxattr", layout.UpperDir, layout.WorkDir)
	if err := unix.Mount("overlay", layout.MergedDir, "overlay", 0, opts); err != nil {
		return fmt.Errorf("%w: %w", ErrOverlayUnsupported, &MountError{Step: "overlay", Err: err})
	}
	log.Debugf("overlay mounted at %s", layout.MergedDir)
	return nil
}

// applyBindMount makes one host path visible inside the merged root.
// The destination is created mirroring the source type, then bound;
// read-only binds need the second remount step because the read-only
// flag is ignored on the initial bind.
func applyBindMount(merged string, b types.BindMount) error {
	source := b.Source
	if resolved, err := filepath.EvalSymlinks(source); err == nil {
		source = resolved
	}

	info, err := os.Stat(source)
	if err != nil {
		return &MountError{Step: "bind:" + b.Destination, Err: err}
	}

	target := filepath.Join(merged, b.Destination)
	if info.IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return &MountError{Step: "bind:" + b.Destination, Err: err}
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return &MountError{Step: "bind:" + b.Destination, Err: err}
		}
		if err := touchFile(target); err != nil {
			return &MountError{Step: "bind:" + b.Destination, Err: err}
		}
	}

	if err := unix.Mount(source, target, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return &MountError{Step: "bind:" + b.Destination, Err: err}
	}
	if b.ReadOnly {
		if err := unix.Mount("", target, "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY, ""); err != nil {
			return &MountError{Step: "bind-ro:" + b.Destination, Err: err}
		}
	}
	log.Debugf("bind mounted %s -> %s", source, b.Destination)
	return nil
}

// mountKernelFilesystems provides /proc, /sys, /dev and /tmp inside
// the merged root. proc must be a fresh instance so the new PID
// namespace is reflected; /dev is a recursive bind because mknod is
// not available to an unprivileged mapping; /sys is bound and then
// remounted read-only, and if the kernel refuses that remount the bind
// stays writable.
func mountKernelFilesystems(merged string) error {
	procDir := filepath.Join(merged, "proc")
	if err := os.MkdirAll(procDir, 0o755); err != nil {
		return &MountError{Step: "proc", Err: err}
	}
	if err := unix.Mount("proc", procDir, "proc", 0, ""); err != nil {
		return &MountError{Step: "proc", Err: err}
	}

	sysDir := filepath.Join(merged, "sys")
	if err := os.MkdirAll(sysDir, 0o755); err != nil {
		return &MountError{Step: "sys", Err: err}
	}
	if err := unix.Mount("/sys", sysDir, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return &MountError{Step: "sys", Err: err}
	}
	if err := unix.Mount("", sysDir, "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY|unix.MS_REC, ""); err != nil {
		log.WithError(err).Debug("read-only remount of /sys refused, keeping writable bind")
	}

	devDir := filepath.Join(merged, "dev")
	if err := os.MkdirAll(devDir, 0o755); err != nil {
		return &MountError{Step: "dev", Err: err}
	}
	if err := unix.Mount("/dev", devDir, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return &MountError{Step: "dev", Err: err}
	}

	tmpDir := filepath.Join(merged, "tmp")
	if err := os.MkdirAll(tmpDir, 0o1777); err != nil {
		return &MountError{Step: "tmp", Err: err}
	}
	if err := unix.Mount("tmpfs", tmpDir, "tmpfs", 0, "mode=1777"); err != nil {
		return &MountError{Step: "tmp", Err: err}
	}

	return nil
}

// pivotIntoRoot swaps the process root for the merged directory and
// severs access to the previous root.
func pivotIntoRoot(merged string) error {
	oldRoot := filepath.Join(merged, oldRootDir)
	if err := os.MkdirAll(oldRoot, 0o700); err != nil {
		return &MountError{Step: "pivot-dir", Err: err}
	}

	if err := unix.PivotRoot(merged, oldRoot); err != nil {
		return &MountError{Step: "pivot_root", Err: err}
	}
	if err := os.Chdir("/"); err != nil {
		return &MountError{Step: "pivot-chdir", Err: err}
	}
	if err := unix.Unmount("/"+oldRootDir, unix.MNT_DETACH); err != nil {
		return &MountError{Step: "pivot-detach", Err: err}
	}
	if err := os.Remove("/" + oldRootDir); err != nil {
		log.WithError(err).Debug("could not remove pivot stub directory")
	}
	return nil
}

// touchFile creates an empty file to serve as a bind target, leaving
// an existing file alone.
func touchFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	return f.Close()
}

// InitSandbox runs inside the freshly cloned namespaces as PID 1: it
// assembles the filesystem, names the host, provisions the network and
// replaces itself with the target command. On success it never
// returns.
func InitSandbox(spec *InitSpec) error {
	if err := AssembleFilesystem(spec.Layout, spec.Mounts); err != nil {
		return err
	}

	if spec.Hostname != "" {
		if err := unix.Sethostname([]byte(spec.Hostname)); err != nil {
			return fmt.Errorf("failed to set hostname: %w", err)
		}
	}

	if err := ConfigureNetwork(spec.Network); err != nil {
		return err
	}

	if spec.WorkDir != "" {
		if err := os.MkdirAll(spec.WorkDir, 0o755); err == nil {
			if err := os.Chdir(spec.WorkDir); err != nil {
				return fmt.Errorf("failed to enter workdir %s: %w", spec.WorkDir, err)
			}
		}
	}

	env := os.Environ()
	env = append(env, spec.Env...)

	log.Debugf("executing %s", strings.Join(spec.Command, " "))
	if err := unix.Exec(spec.Command[0], spec.Command, env); err != nil {
		return fmt.Errorf("failed to execute %s: %w", spec.Command[0], err)
	}
	return nil
}

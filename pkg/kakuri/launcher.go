package kakuri

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/unfaded/kakuri/pkg/tools"
	"github.com/unfaded/kakuri/pkg/types"
)

// LaunchOptions describes one sandbox session for the namespace
// launcher.
type LaunchOptions struct {
	// Command is the resolved program path followed by its arguments.
	Command []string

	// Mounts is the effective bind mount set from the resolver.
	Mounts []types.BindMount

	// Layout is the overlay stack to mount; the launcher does not care
	// whether it is ephemeral or persistent.
	Layout OverlayLayout

	// AllowNetwork keeps the sandbox in the outer network namespace.
	AllowNetwork bool

	// Vpn, when set, attaches a WireGuard interface to the sandbox's
	// fresh network namespace.
	Vpn *WireGuardConfig

	// UserMap maps the invoking UID to itself instead of to root.
	UserMap bool

	// WorkDir is the initial working directory after the pivot.
	WorkDir string

	// Env is extra environment for the sandboxed command.
	Env []string

	// Interactive attaches the session to a pty.
	Interactive bool

	// PidFile, when set, records the init pid for the session's
	// lifetime so exec can find the running instance.
	PidFile string

	// Hostname inside the UTS namespace.
	Hostname string
}

// Launch runs the two-process construction protocol: it re-executes
// kakuri as the hidden init verb inside freshly cloned namespaces,
// performs the steps only the parent can do (UID/GID maps are written
// by the runtime between clone and exec; the WireGuard hand-off
// happens here), releases the child through the synchronization pipe
// and waits, forwarding signals. The child's exit status is returned.
func Launch(opts LaunchOptions) (exitCode int, err error) {
	self, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("cannot determine own executable: %w", err)
	}

	cleanup := &CleanupStack{}
	defer cleanup.Run()

	if opts.Hostname == "" {
		opts.Hostname = "kakuri"
	}

	spec := &InitSpec{
		Command:  opts.Command,
		Env:      opts.Env,
		WorkDir:  opts.WorkDir,
		Hostname: opts.Hostname,
		Layout:   opts.Layout,
		Mounts:   opts.Mounts,
		Network:  networkSpec(opts),
	}

	specR, specW, err := os.Pipe()
	if err != nil {
		return 0, err
	}
	defer specW.Close()

	initArgs := []string{"init"}
	if log.IsLevelEnabled(log.DebugLevel) {
		initArgs = append(initArgs, "--verbose")
	}
	cmd := exec.Command(self, initArgs...)
	cmd.ExtraFiles = []*os.File{specR}
	cmd.Env = os.Environ()
	cmd.SysProcAttr = namespaceAttrs(opts)

	var ptmx *os.File
	if opts.Interactive {
		ptmx, err = pty.Start(cmd)
		if err != nil {
			specR.Close()
			return 0, launchError(err)
		}
	} else {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err = cmd.Start(); err != nil {
			specR.Close()
			return 0, launchError(err)
		}
	}
	specR.Close()

	cleanup.Push("kill sandbox init", func() error {
		if cmd.ProcessState != nil {
			return nil
		}
		return cmd.Process.Kill()
	})

	if opts.PidFile != "" {
		if err := tools.WritePidFile(opts.PidFile, cmd.Process.Pid); err != nil {
			log.WithError(err).Warn("could not record sandbox pid")
		} else {
			cleanup.Push("remove pid file", func() error {
				return os.Remove(opts.PidFile)
			})
		}
	}

	// WireGuard hand-off: configure in the host namespace, then move
	// the interface into the child's namespace before releasing it.
	if opts.Vpn != nil {
		undoLink, err := SetupHostWireGuard(opts.Vpn)
		if err != nil {
			return 0, err
		}
		if err := MoveWireGuardToPid(cmd.Process.Pid); err != nil {
			undoLink()
			return 0, err
		}
	}

	if err := WriteInitSpec(specW, spec); err != nil {
		return 0, err
	}

	stopForwarding := forwardSignals(cmd, ptmx)
	defer stopForwarding()

	if ptmx != nil {
		runPtySession(ptmx)
	}

	waitErr := cmd.Wait()
	if waitErr == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		status, ok := exitErr.Sys().(syscall.WaitStatus)
		if ok && status.Signaled() {
			return 128 + int(status.Signal()), nil
		}
		return exitErr.ExitCode(), nil
	}
	return 0, waitErr
}

// networkSpec derives the child-side network description from the
// options. A VPN always implies a fresh namespace.
func networkSpec(opts LaunchOptions) NetworkSpec {
	switch {
	case opts.Vpn != nil:
		return NetworkSpec{
			Mode: types.NetworkWireGuard,
			WireGuard: &WireGuardSpec{
				Interface: wgInterfaceName,
				Address:   opts.Vpn.Address,
				DNS:       opts.Vpn.DNS,
			},
		}
	case opts.AllowNetwork:
		return NetworkSpec{Mode: types.NetworkHost}
	default:
		return NetworkSpec{Mode: types.NetworkNone}
	}
}

// namespaceAttrs builds the clone flag set and single-UID mappings.
// All namespaces are entered at clone time, so the re-executed init is
// the first fork and becomes PID 1; the runtime writes setgroups=deny
// and the maps before it starts executing, which preserves the
// required ordering.
func namespaceAttrs(opts LaunchOptions) *syscall.SysProcAttr {
	flags := uintptr(unix.CLONE_NEWUSER | unix.CLONE_NEWNS | unix.CLONE_NEWPID |
		unix.CLONE_NEWUTS | unix.CLONE_NEWIPC)
	if !opts.AllowNetwork {
		flags |= unix.CLONE_NEWNET
	}

	innerUID, innerGID := 0, 0
	if opts.UserMap {
		innerUID, innerGID = os.Getuid(), os.Getgid()
	}

	return &syscall.SysProcAttr{
		Cloneflags: flags,
		UidMappings: []syscall.SysProcIDMap{
			{ContainerID: innerUID, HostID: os.Getuid(), Size: 1},
		},
		GidMappings: []syscall.SysProcIDMap{
			{ContainerID: innerGID, HostID: os.Getgid(), Size: 1},
		},
		GidMappingsEnableSetgroups: false,
	}
}

// launchError classifies a clone failure: a kernel with unprivileged
// user namespaces disabled surfaces EPERM or EINVAL here.
func launchError(err error) error {
	if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EINVAL) {
		return fmt.Errorf("%w: %v", ErrNamespaceUnsupported, err)
	}
	return fmt.Errorf("failed to start sandbox: %w", err)
}

// forwardSignals relays interactive termination signals to the init
// process, and window size changes to the pty when one is attached.
func forwardSignals(cmd *exec.Cmd, ptmx *os.File) (stop func()) {
	sigs := make(chan os.Signal, 1)
	notify := []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}
	if ptmx != nil {
		notify = append(notify, syscall.SIGWINCH)
	}
	signal.Notify(sigs, notify...)

	go func() {
		for sig := range sigs {
			if sig == syscall.SIGWINCH && ptmx != nil {
				if err := pty.InheritSize(os.Stdin, ptmx); err != nil {
					log.WithError(err).Debug("pty resize failed")
				}
				continue
			}
			if cmd.Process != nil {
				_ = cmd.Process.Signal(sig)
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(sigs)
	}
}

// runPtySession wires the controlling terminal to the sandbox pty:
// raw mode on the local tty, initial window size, both copy
// directions. It returns when the sandbox side closes.
func runPtySession(ptmx *os.File) {
	defer ptmx.Close()

	if err := pty.InheritSize(os.Stdin, ptmx); err != nil {
		log.WithError(err).Debug("initial pty resize failed")
	}

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err == nil {
			defer func() {
				if err := term.Restore(fd, oldState); err != nil {
					log.WithError(err).Debug("terminal restore failed")
				}
			}()
		}
	}

	go func() {
		_, _ = io.Copy(ptmx, os.Stdin)
	}()
	_, _ = io.Copy(os.Stdout, ptmx)
}

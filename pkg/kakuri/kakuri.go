package kakuri

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/unfaded/kakuri/pkg/config"
	"github.com/unfaded/kakuri/pkg/tools"
	"github.com/unfaded/kakuri/pkg/types"
)

// defaultCommand is launched when an invocation names no program.
const defaultCommand = "/bin/bash"

// Invocation is the structured form of one sandbox request, produced
// by the CLI layer.
type Invocation struct {
	// Command is the program plus its arguments; empty means the
	// default shell.
	Command []string

	// AllowNetwork shares the outer network namespace.
	AllowNetwork bool

	// UserMap maps the caller's UID to itself instead of to root.
	UserMap bool

	// Binds are the explicit --bind entries.
	Binds []types.BindMount

	// Profiles are the --bind-profile names to expand.
	Profiles []string

	// Vpn is the --vpn reference (name or path), empty for none.
	Vpn string

	// WorkDir overrides the initial working directory.
	WorkDir string
}

// Kakuri is the lifecycle orchestrator tying the resolver, launcher
// and container store together.
type Kakuri struct {
	Config *config.Config
	Store  *Store
}

// New loads the configuration and opens the container store.
func New(configPath string) (*Kakuri, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	dir, err := cfg.ContainersDir()
	if err != nil {
		return nil, err
	}
	store, err := NewStore(dir)
	if err != nil {
		return nil, err
	}

	return &Kakuri{Config: cfg, Store: store}, nil
}

// resolveSession turns an invocation into launch options: command
// resolution, mount derivation and VPN config loading. The overlay
// layout is filled in by the caller.
func (k *Kakuri) resolveSession(inv Invocation) (*LaunchOptions, error) {
	if inv.AllowNetwork && inv.Vpn != "" {
		return nil, Usagef("--allow-network and --vpn are mutually exclusive")
	}

	// The configured default applies only when neither network flag
	// was given explicitly.
	allowNetwork := inv.AllowNetwork
	if !allowNetwork && inv.Vpn == "" {
		allowNetwork = k.Config.Defaults.AllowNetwork
	}

	command := inv.Command
	if len(command) == 0 {
		command = []string{defaultCommand}
	}

	program, err := ResolveCommand(command[0])
	if err != nil {
		return nil, err
	}
	resolved := append([]string{program}, command[1:]...)

	mounts, err := ResolveMounts(k.Config, inv.Profiles, command[1:], inv.Binds)
	if err != nil {
		return nil, err
	}

	var vpn *WireGuardConfig
	if inv.Vpn != "" {
		path, err := LocateVpnConfig(types.ParseVpnRef(inv.Vpn))
		if err != nil {
			return nil, err
		}
		if vpn, err = LoadWireGuardConfig(path); err != nil {
			return nil, err
		}
	}

	return &LaunchOptions{
		Command:      resolved,
		Mounts:       mounts,
		AllowNetwork: allowNetwork,
		Vpn:          vpn,
		UserMap:      inv.UserMap,
		WorkDir:      inv.WorkDir,
	}, nil
}

// Run launches an ephemeral sandbox whose overlay lives under a fresh
// temporary directory, removed on every exit path.
func (k *Kakuri) Run(inv Invocation) error {
	sess, err := k.resolveSession(inv)
	if err != nil {
		return err
	}

	cleanup := &CleanupStack{}
	defer cleanup.Run()

	base := filepath.Join(os.TempDir(), "kakuri-"+uuid.New().String())
	if err := os.MkdirAll(base, 0o700); err != nil {
		return fmt.Errorf("failed to create sandbox directory: %w", err)
	}
	cleanup.Push("remove sandbox directory", func() error {
		return os.RemoveAll(base)
	})

	sess.Layout = OverlayLayout{
		UpperDir:  filepath.Join(base, "upper"),
		WorkDir:   filepath.Join(base, "work"),
		MergedDir: filepath.Join(base, "merged"),
	}

	return finishLaunch(Launch(*sess))
}

// Create registers a new named container without launching anything.
func (k *Kakuri) Create(name string, inv Invocation) error {
	if inv.Vpn != "" {
		// Fail early instead of persisting a reference that cannot
		// resolve.
		if _, err := LocateVpnConfig(types.ParseVpnRef(inv.Vpn)); err != nil {
			return err
		}
	}
	rec, err := k.Store.Create(name, inv.AllowNetwork, inv.UserMap, inv.Vpn)
	if err != nil {
		return err
	}
	log.Infof("created container %s at %s", rec.Name, rec.StorageRoot)
	return nil
}

// Start launches a session on a persistent container's overlay. Flags
// stored at create time are the defaults; invocation flags add to
// them, and a --vpn given here applies to this session only.
func (k *Kakuri) Start(name string, inv Invocation, interactive bool) error {
	rec, err := k.Store.Lookup(name)
	if err != nil {
		return err
	}

	merged := inv
	merged.AllowNetwork = inv.AllowNetwork || rec.AllowNetwork
	merged.UserMap = inv.UserMap || rec.UserMap
	if merged.Vpn == "" {
		merged.Vpn = rec.Vpn
	}

	sess, err := k.resolveSession(merged)
	if err != nil {
		return err
	}

	sess.Layout = OverlayLayout{
		UpperDir:  rec.UpperPath(),
		WorkDir:   rec.WorkPath(),
		MergedDir: rec.MergedPath(),
	}
	sess.PidFile = k.Store.PidFile(name)
	sess.Interactive = interactive
	if interactive {
		sess.Env = shellEnvironment(name)
	}

	return finishLaunch(Launch(*sess))
}

// Exec runs a command inside the namespaces of a running instance of
// the container; with no live instance it behaves as Start. Network
// flags are ignored: the joined namespace dictates connectivity.
func (k *Kakuri) Exec(name string, command []string, interactive bool) error {
	if _, err := k.Store.Lookup(name); err != nil {
		return err
	}

	pid, err := tools.ReadPidFile(k.Store.PidFile(name))
	if err != nil || !tools.PidAlive(pid) {
		log.Debugf("no running instance of %s, starting a new session", name)
		return k.Start(name, Invocation{Command: command}, interactive)
	}

	return k.joinRunning(name, pid, command, interactive)
}

// Shell opens an interactive shell in the container, joining a running
// instance when one exists.
func (k *Kakuri) Shell(name string) error {
	return k.Exec(name, []string{defaultCommand, "-i"}, true)
}

// joinRunning enters the full namespace set of pid with the host
// nsenter tool, which performs the setns sequence on each
// /proc/<pid>/ns file.
func (k *Kakuri) joinRunning(name string, pid int, command []string, interactive bool) error {
	nsenter, err := tools.LookupTool("nsenter")
	if err != nil {
		return err
	}

	if len(command) == 0 {
		command = []string{defaultCommand}
	}

	args := []string{
		"--target", strconv.Itoa(pid),
		"--preserve-credentials",
		"-U", "-m", "-u", "-i", "-p", "-n",
		"--",
	}
	args = append(args, command...)

	cmd := exec.Command(nsenter, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if interactive {
		cmd.Env = append(cmd.Env, shellEnvironment(name)...)
	}

	log.Debugf("joining container %s (pid %d)", name, pid)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ChildExitError{Code: exitErr.ExitCode()}
		}
		return err
	}
	return nil
}

// Remove deletes a named container and its storage.
func (k *Kakuri) Remove(name string) error {
	if err := k.Store.Remove(name); err != nil {
		return err
	}
	log.Infof("removed container %s", name)
	return nil
}

// List prints the stored containers as a table.
func (k *Kakuri) List() error {
	records, err := k.Store.List()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No containers found.")
		return nil
	}

	header := []string{"Name", "Created", "Network", "User", "VPN"}
	data := [][]string{}
	for _, rec := range records {
		network := "isolated"
		if rec.AllowNetwork {
			network = "host"
		}
		user := "root"
		if rec.UserMap {
			user = "caller"
		}
		vpn := rec.Vpn
		if vpn == "" {
			vpn = "-"
		}
		data = append(data, []string{rec.Name, formatAge(rec.CreatedAt), network, user, vpn})
	}
	tools.ShowTable(header, data)
	return nil
}

// VpnSet persists a VPN reference on the container record.
func (k *Kakuri) VpnSet(name, ref string) error {
	if _, err := LocateVpnConfig(types.ParseVpnRef(ref)); err != nil {
		return err
	}
	return k.Store.SetVpn(name, ref)
}

// VpnShow returns the stored VPN reference, empty when none is set.
func (k *Kakuri) VpnShow(name string) (string, error) {
	rec, err := k.Store.Lookup(name)
	if err != nil {
		return "", err
	}
	return rec.Vpn, nil
}

// VpnRemove detaches the VPN from the container record.
func (k *Kakuri) VpnRemove(name string) error {
	return k.Store.SetVpn(name, "")
}

// finishLaunch converts a child exit status into the error the CLI
// forwards verbatim.
func finishLaunch(code int, err error) error {
	if err != nil {
		return err
	}
	if code != 0 {
		return &ChildExitError{Code: code}
	}
	return nil
}

// shellEnvironment builds the prompt and identity variables for
// interactive sessions.
func shellEnvironment(name string) []string {
	ps1 := fmt.Sprintf(`\[\033[1;34m\][%s]\[\033[0m\] \[\033[1;32m\]\w\[\033[0m\] `, name)
	return []string{
		"PS1=" + ps1,
		"CONTAINER_NAME=" + name,
	}
}

// formatAge renders a creation time the way container tools usually
// do, as time elapsed.
func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

package kakuri

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/unfaded/kakuri/pkg/config"
	"github.com/unfaded/kakuri/pkg/types"
)

// File extensions that mark an argument as path-like even without a
// path prefix, provided the file actually exists.
var pathExtensions = []string{
	".py", ".js", ".rs", ".c", ".cpp", ".h", ".hpp", ".java", ".go",
	".txt", ".md", ".json", ".yaml", ".yml", ".toml", ".xml", ".html",
	".css", ".sh", ".bash", ".conf", ".cfg", ".ini", ".log", ".csv",
	".sql", ".dockerfile", ".docker", ".env", ".properties",
}

// ResolveCommand resolves the program token of an invocation to an
// absolute host path. Tokens containing a slash are used verbatim
// after tilde expansion; bare names are looked up on PATH by stat'ing
// each directory entry.
func ResolveCommand(command string) (string, error) {
	if command == "" {
		return "", Usagef("no command given")
	}

	if strings.ContainsRune(command, '/') {
		expanded, err := config.ExpandTilde(command)
		if err != nil {
			return "", err
		}
		return expanded, nil
	}

	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, command)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("command %q: %w in PATH", command, ErrNotFound)
}

// ResolveMounts derives the effective bind mount set for an
// invocation: bind-profile expansions first, then paths auto-detected
// from the command arguments, then explicit --bind entries. Duplicate
// destinations collapse keeping the last-specified source, so explicit
// mounts always win.
func ResolveMounts(cfg *config.Config, profiles []string, args []string, explicit []types.BindMount) ([]types.BindMount, error) {
	mounts, err := expandProfiles(cfg, profiles)
	if err != nil {
		return nil, err
	}

	mounts = append(mounts, DetectPathArguments(args)...)

	for _, b := range explicit {
		expanded, err := expandBind(b)
		if err != nil {
			return nil, err
		}
		mounts = append(mounts, expanded)
	}

	return mergeMounts(mounts)
}

// expandProfiles replaces each named profile with the host paths
// declared for it in the configuration.
func expandProfiles(cfg *config.Config, profiles []string) (mounts []types.BindMount, err error) {
	for _, name := range profiles {
		paths, ok := cfg.BindProfiles[name]
		if !ok {
			return nil, fmt.Errorf("bind profile %q: %w in config", name, ErrNotFound)
		}
		for _, p := range paths {
			expanded, err := config.ExpandTilde(p)
			if err != nil {
				return nil, err
			}
			mounts = append(mounts, types.BindMount{
				Source:      expanded,
				Destination: expanded,
				ReadOnly:    !underHome(expanded),
			}.Normalize())
		}
	}
	return mounts, nil
}

// DetectPathArguments inspects the argument vector of a command (the
// program token itself is never considered) and returns a bind mount
// for every path-like token (see isPathLike) that names an existing
// host path; other tokens are not checked. Directories are
// mounted as themselves; for files the parent directory is mounted so
// sibling resolution keeps working.
func DetectPathArguments(args []string) (mounts []types.BindMount) {
	for _, arg := range args {
		if !isPathLike(arg) {
			continue
		}
		expanded, err := config.ExpandTilde(arg)
		if err != nil {
			continue
		}
		info, err := os.Stat(expanded)
		if err != nil {
			continue
		}

		target := filepath.Clean(expanded)
		if !info.IsDir() {
			target = filepath.Dir(target)
		}
		if !filepath.IsAbs(target) {
			abs, err := filepath.Abs(target)
			if err != nil {
				continue
			}
			target = abs
		}

		mounts = append(mounts, types.BindMount{
			Source:      target,
			Destination: target,
			ReadOnly:    !underHome(target),
		})
	}

	if len(mounts) > 0 {
		log.Debugf("auto-detected %d path argument(s) for mounting", len(mounts))
	}
	return mounts
}

// isPathLike classifies a command argument as a candidate path. The
// caller still requires a successful stat before mounting anything.
func isPathLike(s string) bool {
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "~") {
		return true
	}
	if strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") {
		return true
	}

	lower := strings.ToLower(s)
	for _, ext := range pathExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// expandBind tilde-expands the host side of an explicit bind and
// validates the destination.
func expandBind(b types.BindMount) (types.BindMount, error) {
	src, err := config.ExpandTilde(b.Source)
	if err != nil {
		return types.BindMount{}, err
	}
	dst, err := config.ExpandTilde(b.Destination)
	if err != nil {
		return types.BindMount{}, err
	}
	b.Source = src
	b.Destination = dst
	return b.Normalize(), nil
}

// mergeMounts collapses duplicate destinations keeping the
// last-specified entry while preserving first-occurrence ordering, and
// enforces the structural invariants: sources exist, destinations are
// absolute, and the container root is never a bind target.
func mergeMounts(mounts []types.BindMount) ([]types.BindMount, error) {
	merged := make([]types.BindMount, 0, len(mounts))
	index := make(map[string]int, len(mounts))

	for _, b := range mounts {
		if b.Destination == "/" {
			return nil, Usagef("refusing to bind mount over the container root")
		}
		if !filepath.IsAbs(b.Destination) {
			return nil, Usagef("bind destination %q is not absolute", b.Destination)
		}
		if _, err := os.Stat(b.Source); err != nil {
			return nil, fmt.Errorf("bind source %q: %w", b.Source, ErrNotFound)
		}
		if resolved, err := filepath.EvalSymlinks(b.Source); err == nil {
			b.Source = resolved
		}

		if at, ok := index[b.Destination]; ok {
			merged[at] = b
			continue
		}
		index[b.Destination] = len(merged)
		merged = append(merged, b)
	}
	return merged, nil
}

// underHome reports whether path is inside the invoking user's home
// directory; such paths default to writable binds.
func underHome(path string) bool {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return false
	}
	home = filepath.Clean(home)
	return path == home || strings.HasPrefix(path, home+string(filepath.Separator))
}

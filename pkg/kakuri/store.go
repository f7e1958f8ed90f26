package kakuri

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"github.com/unfaded/kakuri/pkg/tools"
	"github.com/unfaded/kakuri/pkg/types"
)

const metaFileName = "meta.toml"

// containerName guards against names that could escape the containers
// directory or break the on-disk layout.
var containerName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Store persists container records under a containers directory, one
// subdirectory per name holding meta.toml and the overlay layers.
type Store struct {
	dir string
}

// NewStore opens (and creates if needed) the containers directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create containers directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// StoragePath returns the storage root for a name without checking
// that the container exists.
func (s *Store) StoragePath(name string) string {
	return filepath.Join(s.dir, name)
}

// PidFile returns the transient pid file path used while an instance
// of the container is running.
func (s *Store) PidFile(name string) string {
	return filepath.Join(s.StoragePath(name), "pid")
}

// ValidateName checks a candidate container name.
func ValidateName(name string) error {
	if !containerName.MatchString(name) {
		return Usagef("invalid container name %q, allowed characters are [A-Za-z0-9._-]", name)
	}
	return nil
}

// Create makes the storage layout for a new container and writes its
// record. A partially created container is rolled back.
func (s *Store) Create(name string, allowNetwork, userMap bool, vpn string) (types.ContainerRecord, error) {
	if err := ValidateName(name); err != nil {
		return types.ContainerRecord{}, err
	}

	root := s.StoragePath(name)
	if _, err := os.Stat(root); err == nil {
		return types.ContainerRecord{}, fmt.Errorf("container %q: %w", name, ErrAlreadyExists)
	}

	rec := types.ContainerRecord{
		Name:         name,
		CreatedAt:    time.Now().UTC(),
		AllowNetwork: allowNetwork,
		UserMap:      userMap,
		Vpn:          vpn,
		UpperDir:     "upper",
		WorkDir:      "work",
		MergedDir:    "merged",
		StorageRoot:  root,
	}

	for _, dir := range []string{root, rec.UpperPath(), rec.WorkPath(), rec.MergedPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			os.RemoveAll(root)
			return types.ContainerRecord{}, fmt.Errorf("failed to create container storage: %w", err)
		}
	}

	if err := s.writeMeta(rec); err != nil {
		os.RemoveAll(root)
		return types.ContainerRecord{}, err
	}
	return rec, nil
}

// Lookup loads the record for a name.
func (s *Store) Lookup(name string) (types.ContainerRecord, error) {
	if err := ValidateName(name); err != nil {
		return types.ContainerRecord{}, err
	}

	root := s.StoragePath(name)
	metaPath := filepath.Join(root, metaFileName)
	if _, err := os.Stat(metaPath); err != nil {
		return types.ContainerRecord{}, fmt.Errorf("container %q: %w", name, ErrNotFound)
	}

	rec := types.ContainerRecord{}
	if _, err := toml.DecodeFile(metaPath, &rec); err != nil {
		return types.ContainerRecord{}, fmt.Errorf("failed to parse %s: %w", metaPath, err)
	}
	rec.StorageRoot = root
	if rec.Name == "" {
		rec.Name = name
	}
	return rec, nil
}

// List enumerates all stored containers sorted by name. Directories
// without a readable record are skipped with a warning.
func (s *Store) List() ([]types.ContainerRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var records []types.ContainerRecord
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rec, err := s.Lookup(entry.Name())
		if err != nil {
			log.WithError(err).Warnf("skipping container directory %s", entry.Name())
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
	return records, nil
}

// Remove deletes a container's storage after clearing any mounts still
// lingering under its merged root.
func (s *Store) Remove(name string) error {
	rec, err := s.Lookup(name)
	if err != nil {
		return err
	}

	if err := tools.UnmountUnder(rec.MergedPath()); err != nil {
		return fmt.Errorf("%w under %s: %v", ErrBusyMounts, rec.MergedPath(), err)
	}

	if err := os.RemoveAll(rec.StorageRoot); err != nil {
		return fmt.Errorf("failed to remove container storage: %w", err)
	}
	return nil
}

// SetVpn rewrites the stored VPN reference. An empty ref detaches the
// VPN.
func (s *Store) SetVpn(name, ref string) error {
	rec, err := s.Lookup(name)
	if err != nil {
		return err
	}
	rec.Vpn = ref
	return s.writeMeta(rec)
}

func (s *Store) writeMeta(rec types.ContainerRecord) error {
	metaPath := filepath.Join(rec.StorageRoot, metaFileName)
	f, err := os.Create(metaPath)
	if err != nil {
		return fmt.Errorf("failed to write container record: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(rec); err != nil {
		return fmt.Errorf("failed to encode container record: %w", err)
	}
	return nil
}

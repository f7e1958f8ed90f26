package types

import (
	"path/filepath"
	"time"
)

// ContainerRecord is the persisted description of a named container,
// stored as meta.toml inside the container's storage root.
type ContainerRecord struct {
	// Name is the unique, filesystem-safe container name. It doubles
	// as the storage directory name under the containers dir.
	Name string `toml:"name"`

	// CreatedAt is the creation time of the record.
	CreatedAt time.Time `toml:"created_at"`

	// AllowNetwork mirrors the --allow-network flag given at create
	// time and becomes the default for every start.
	AllowNetwork bool `toml:"allow_network"`

	// UserMap mirrors the --user flag: map the invoking UID to itself
	// inside the user namespace instead of to root.
	UserMap bool `toml:"user_map"`

	// Vpn is the stored WireGuard reference (a config name or a path),
	// empty when the container has no VPN attached.
	Vpn string `toml:"vpn"`

	// Overlay subdirectories, relative to the storage root.
	UpperDir  string `toml:"upper_dir"`
	WorkDir   string `toml:"work_dir"`
	MergedDir string `toml:"merged_dir"`

	// StorageRoot is the absolute container directory. It is derived
	// from the record's location on load and never serialized.
	StorageRoot string `toml:"-"`
}

// UpperPath returns the absolute upper-layer directory.
func (r ContainerRecord) UpperPath() string {
	return filepath.Join(r.StorageRoot, r.UpperDir)
}

// WorkPath returns the absolute overlay work directory.
func (r ContainerRecord) WorkPath() string {
	return filepath.Join(r.StorageRoot, r.WorkDir)
}

// MergedPath returns the absolute merged-root mount target.
func (r ContainerRecord) MergedPath() string {
	return filepath.Join(r.StorageRoot, r.MergedDir)
}

package kakuri

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unfaded/kakuri/pkg/types"
)

const sampleWgConfig = `[Interface]
PrivateKey = aBcDeFgH1234567890aBcDeFgH1234567890aBc=
Address = 10.8.0.2/24, fd00::2/64
DNS = 1.1.1.1, 8.8.8.8
MTU = 1420

[Peer]
PublicKey = xYz9876543210xYz9876543210xYz9876543210=
Endpoint = vpn.example.com:51820
AllowedIPs = 0.0.0.0/0
PersistentKeepalive = 25
`

func TestParseWireGuardConfig(t *testing.T) {
	t.Parallel()

	cfg, err := ParseWireGuardConfig(sampleWgConfig)
	if err != nil {
		t.Fatalf("ParseWireGuardConfig: %v", err)
	}
	if cfg.Address != "10.8.0.2/24" {
		t.Errorf("address = %q, want first listed entry", cfg.Address)
	}
	if len(cfg.DNS) != 2 || cfg.DNS[0] != "1.1.1.1" || cfg.DNS[1] != "8.8.8.8" {
		t.Errorf("dns = %v", cfg.DNS)
	}
}

func TestParseWireGuardConfigMissingAddress(t *testing.T) {
	t.Parallel()

	_, err := ParseWireGuardConfig("[Interface]\nPrivateKey = k=\n")
	if !errors.Is(err, ErrVpnUnavailable) {
		t.Errorf("expected ErrVpnUnavailable, got %v", err)
	}
}

func TestStripForSetconf(t *testing.T) {
	t.Parallel()

	stripped := StripForSetconf(sampleWgConfig)

	for _, key := range []string{"Address", "DNS", "MTU"} {
		if strings.Contains(stripped, key+" =") {
			t.Errorf("setconf input still contains %s", key)
		}
	}
	for _, keep := range []string{"PrivateKey", "[Peer]", "PublicKey", "Endpoint", "AllowedIPs", "PersistentKeepalive"} {
		if !strings.Contains(stripped, keep) {
			t.Errorf("setconf input lost %s", keep)
		}
	}
}

func TestLocateVpnConfigPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "office.conf")
	if err := os.WriteFile(path, []byte(sampleWgConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := LocateVpnConfig(types.VpnRef{Kind: types.VpnRefPath, Value: path})
	if err != nil {
		t.Fatalf("LocateVpnConfig: %v", err)
	}
	if got != path {
		t.Errorf("located %q, want %q", got, path)
	}
}

func TestLocateVpnConfigUnreadablePath(t *testing.T) {
	t.Parallel()

	ref := types.VpnRef{Kind: types.VpnRefPath, Value: "/no/such/dir/x.conf"}
	if _, err := LocateVpnConfig(ref); !errors.Is(err, ErrVpnUnavailable) {
		t.Errorf("expected ErrVpnUnavailable, got %v", err)
	}
}

func TestLocateVpnConfigUnknownName(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	ref := types.VpnRef{Kind: types.VpnRefName, Value: "kakuri-test-no-such-config"}
	if _, err := LocateVpnConfig(ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocateVpnConfigByName(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "wireguard")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "office.conf")
	if err := os.WriteFile(want, []byte(sampleWgConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := LocateVpnConfig(types.VpnRef{Kind: types.VpnRefName, Value: "office"})
	if err != nil {
		t.Fatalf("LocateVpnConfig: %v", err)
	}
	if got != want {
		t.Errorf("located %q, want %q", got, want)
	}
}

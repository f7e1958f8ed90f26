package types

import (
	"testing"
)

func TestParseBindMount(t *testing.T) {
	t.Parallel()

	b, err := ParseBindMount("/data")
	if err != nil {
		t.Fatalf("bare path: %v", err)
	}
	if b.Source != "/data" || b.Destination != "/data" || b.ReadOnly {
		t.Errorf("bare path parsed as %+v", b)
	}

	b, err = ParseBindMount("/host:/inside")
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if b.Source != "/host" || b.Destination != "/inside" || b.ReadOnly {
		t.Errorf("pair parsed as %+v", b)
	}

	b, err = ParseBindMount("/host:/inside:ro")
	if err != nil {
		t.Fatalf("pair with mode: %v", err)
	}
	if !b.ReadOnly {
		t.Error("ro suffix did not set ReadOnly")
	}

	b, err = ParseBindMount("/data:ro")
	if err != nil {
		t.Fatalf("bare path with mode: %v", err)
	}
	if b.Source != "/data" || b.Destination != "/data" || !b.ReadOnly {
		t.Errorf("bare ro path parsed as %+v", b)
	}
}

func TestParseBindMountErrors(t *testing.T) {
	t.Parallel()

	for _, spec := range []string{"", "/a:/b:rw", "/a:/b:ro:extra"} {
		if _, err := ParseBindMount(spec); err == nil {
			t.Errorf("expected error for %q", spec)
		}
	}
}

func TestParseVpnRef(t *testing.T) {
	t.Parallel()

	if ref := ParseVpnRef(""); !ref.IsZero() {
		t.Error("empty string should be the absent reference")
	}
	if ref := ParseVpnRef("office"); ref.Kind != VpnRefName {
		t.Errorf("plain name classified as %v", ref.Kind)
	}
	if ref := ParseVpnRef("/etc/wireguard/office.conf"); ref.Kind != VpnRefPath {
		t.Errorf("path classified as %v", ref.Kind)
	}
	if ref := ParseVpnRef("configs/office.conf"); ref.Kind != VpnRefPath {
		t.Errorf("relative path classified as %v", ref.Kind)
	}
}

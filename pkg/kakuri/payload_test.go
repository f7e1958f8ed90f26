package kakuri

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/unfaded/kakuri/pkg/types"
)

func TestWriteInitSpecClosesPipe(t *testing.T) {
	t.Parallel()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	spec := &InitSpec{
		Command:  []string{"/bin/true"},
		Hostname: "kakuri",
		Layout: OverlayLayout{
			UpperDir:  "/tmp/u",
			WorkDir:   "/tmp/w",
			MergedDir: "/tmp/m",
		},
		Mounts:  []types.BindMount{{Source: "/etc/hosts", Destination: "/etc/hosts", ReadOnly: true}},
		Network: NetworkSpec{Mode: types.NetworkNone},
	}

	if err := WriteInitSpec(w, spec); err != nil {
		t.Fatalf("WriteInitSpec: %v", err)
	}

	// The reader must see the payload and then EOF: the closed write
	// end is what releases the init process.
	decoded := &InitSpec{}
	dec := json.NewDecoder(r)
	if err := dec.Decode(decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Command[0] != "/bin/true" || decoded.Network.Mode != types.NetworkNone {
		t.Errorf("payload round-trip mismatch: %+v", decoded)
	}
	if len(decoded.Mounts) != 1 || !decoded.Mounts[0].ReadOnly {
		t.Errorf("mounts lost in transit: %+v", decoded.Mounts)
	}

	buf := make([]byte, 1)
	if n, _ := r.Read(buf); n != 0 {
		t.Error("write end was not closed after the payload")
	}
}

package dm

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/swuota-server/swuota-server/internal/config"
)

func testRegistry() *Registry {
	return NewRegistry(testUsers(), config.DefaultPrompts(), nil, 0, 0)
}

func TestRegistryCreatesOnFirstContact(t *testing.T) {
	r := testRegistry()

	a := r.GetOrCreate("IMEI:1", "swuota_user")
	if a == nil {
		t.Fatalf("expected a session")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", r.Len())
	}

	if again := r.GetOrCreate("IMEI:1", "swuota_user"); again != a {
		t.Fatalf("expected the same session on repeat contact")
	}

	// Same device, different asserted login is a distinct identity.
	b := r.GetOrCreate("IMEI:1", "mobile")
	if b == a {
		t.Fatalf("expected a distinct session per login")
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", r.Len())
	}
}

func TestRegistryFindAndEvict(t *testing.T) {
	r := testRegistry()
	s := r.GetOrCreate("IMEI:1", "swuota_user")

	found, ok := r.Find(s.ID())
	if !ok || found != s {
		t.Fatalf("expected to find the session by handle")
	}
	if _, ok := r.Find(uuid.New()); ok {
		t.Fatalf("expected unknown handle to miss")
	}

	if !r.Evict(s.ID()) {
		t.Fatalf("expected eviction to succeed")
	}
	if r.Evict(s.ID()) {
		t.Fatalf("expected second eviction to fail")
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistrySweepEvictsIdle(t *testing.T) {
	r := testRegistry()

	idle := r.GetOrCreate("IMEI:1", "swuota_user")
	idle.lastSeen = time.Now().Add(-time.Hour)
	r.GetOrCreate("IMEI:2", "swuota_user")

	if n := r.Sweep(30 * time.Minute); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 remaining session, got %d", r.Len())
	}
	if _, ok := r.Find(idle.ID()); ok {
		t.Fatalf("idle session should be gone")
	}
}

func TestRegistrySnapshot(t *testing.T) {
	r := testRegistry()
	r.GetOrCreate("IMEI:1", "swuota_user")
	r.GetOrCreate("IMEI:2", "mobile")

	infos := r.Snapshot()
	if len(infos) != 2 {
		t.Fatalf("expected 2 infos, got %d", len(infos))
	}
	devices := map[string]bool{}
	for _, info := range infos {
		devices[info.DeviceID] = true
		if info.State != "awaiting-device-ready" {
			t.Fatalf("unexpected state %q", info.State)
		}
	}
	if !devices["IMEI:1"] || !devices["IMEI:2"] {
		t.Fatalf("unexpected devices: %v", devices)
	}
}

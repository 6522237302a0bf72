package track

import (
	"testing"
	"time"

	"github.com/feastline/feastline/pkg/types"
)

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestPutAndGet(t *testing.T) {
	st := New(2 * time.Minute)
	st.Put(7, types.LatLng{Lat: 52.52, Lng: 13.405})

	p, ok := st.Get(7)
	if !ok {
		t.Fatal("Get: expected position, got none")
	}
	if p.Location.Lat != 52.52 || p.Location.Lng != 13.405 {
		t.Errorf("Location: got %+v", p.Location)
	}
}

func TestGet_Missing(t *testing.T) {
	st := New(2 * time.Minute)
	if _, ok := st.Get(404); ok {
		t.Fatal("Get on empty store: expected false, got true")
	}
}

func TestPut_Overwrites(t *testing.T) {
	st := New(2 * time.Minute)
	st.Put(7, types.LatLng{Lat: 1, Lng: 1})
	st.Put(7, types.LatLng{Lat: 2, Lng: 2})

	p, ok := st.Get(7)
	if !ok {
		t.Fatal("Get: expected position after two Puts")
	}
	if p.Location.Lat != 2 {
		t.Errorf("Lat: got %v, want 2", p.Location.Lat)
	}
}

func TestGet_ExcludesStale(t *testing.T) {
	base := time.Now()
	st := New(2 * time.Minute)

	st.now = fixedClock(base.Add(-5 * time.Minute))
	st.Put(7, types.LatLng{Lat: 1, Lng: 1})

	st.now = fixedClock(base)
	if _, ok := st.Get(7); ok {
		t.Error("Get: stale position should be treated as not found")
	}
}

func TestEvict(t *testing.T) {
	base := time.Now()
	st := New(2 * time.Minute)

	st.now = fixedClock(base.Add(-5 * time.Minute))
	st.Put(1, types.LatLng{})

	st.now = fixedClock(base)
	st.Put(2, types.LatLng{})

	if n := st.Evict(base); n != 1 {
		t.Errorf("Evict: got %d removed, want 1", n)
	}
	if got := st.Count(); got != 1 {
		t.Errorf("Count after evict: got %d, want 1", got)
	}
	if _, ok := st.Get(2); !ok {
		t.Error("live entry should survive eviction")
	}
}

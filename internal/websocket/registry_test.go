package websocket

import (
	"errors"
	"testing"
)

func TestRegistryLastWriterWins(t *testing.T) {
	r := NewRegistry()
	first := &Client{userID: 1}
	second := &Client{userID: 1}

	if prev, _ := r.Register(first); prev != nil {
		t.Fatalf("expected no previous client, got %v", prev)
	}
	if prev, _ := r.Register(second); prev != first {
		t.Fatalf("expected first client to be replaced")
	}

	got, ok := r.Lookup(1)
	if !ok || got != second {
		t.Fatalf("expected second client to be registered")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", r.Len())
	}
}

func TestRegistryRegisterSameClientTwice(t *testing.T) {
	r := NewRegistry()
	c := &Client{userID: 4}
	r.Register(c)
	if prev, _ := r.Register(c); prev != nil {
		t.Errorf("re-registering a client must not report it as replaced")
	}
}

func TestRegistryStaleUnregisterKeepsNewerClient(t *testing.T) {
	r := NewRegistry()
	old := &Client{userID: 7}
	fresh := &Client{userID: 7}
	r.Register(old)
	r.Register(fresh)

	if r.Unregister(old) {
		t.Fatalf("unregistering a replaced client must be a no-op")
	}
	if got, ok := r.Lookup(7); !ok || got != fresh {
		t.Fatalf("newer client was evicted")
	}

	if !r.Unregister(fresh) {
		t.Fatalf("expected current client to be removed")
	}
	if _, ok := r.Lookup(7); ok {
		t.Errorf("expected user 7 to be offline")
	}
}

func TestRegistryDrain(t *testing.T) {
	r := NewRegistry()
	for id := int64(1); id <= 3; id++ {
		r.Register(&Client{userID: id})
	}

	clients := r.Drain()
	if len(clients) != 3 {
		t.Fatalf("expected 3 drained clients, got %d", len(clients))
	}
	if r.Len() != 0 {
		t.Errorf("expected empty registry after drain, got %d", r.Len())
	}
}

func TestRegistryRefusesAfterDrain(t *testing.T) {
	r := NewRegistry()
	r.Register(&Client{userID: 1})
	r.Drain()

	if _, err := r.Register(&Client{userID: 2}); !errors.Is(err, errRegistryClosed) {
		t.Fatalf("expected errRegistryClosed, got %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("a drained registry must stay empty, got %d", r.Len())
	}
}

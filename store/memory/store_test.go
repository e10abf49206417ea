package memory

import (
	"context"
	"testing"

	"github.com/xraph/warrant/store"
	"github.com/xraph/warrant/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}

func TestPingAndClose(t *testing.T) {
	s := New()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

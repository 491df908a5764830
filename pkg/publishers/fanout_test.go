package publishers

import (
	"context"
	"errors"
	"testing"
)

type stubPublisher struct {
	id       string
	typ      string
	err      error
	calls    int
	closed   bool
	closeErr error
}

func (s *stubPublisher) ID() string   { return s.id }
func (s *stubPublisher) Type() string { return s.typ }
func (s *stubPublisher) Publish(context.Context, Delivery) error {
	s.calls++
	return s.err
}
func (s *stubPublisher) Close() error {
	s.closed = true
	return s.closeErr
}

func TestFanoutPublishAggregatesErrors(t *testing.T) {
	bad := &stubPublisher{id: "bad", typ: "http", err: errors.New("failed")}
	last := &stubPublisher{id: "last", typ: "file"}
	fanout := NewFanout([]Publisher{
		&stubPublisher{id: "ok", typ: "http"},
		bad,
		nil,
		last,
	})

	if fanout.Size() != 3 {
		t.Fatalf("expected nil publishers to be dropped, size %d", fanout.Size())
	}

	delivered, err := fanout.Publish(context.Background(), testDelivery())
	if len(delivered) != 2 || delivered[0] != "ok" || delivered[1] != "last" {
		t.Fatalf("unexpected delivered ids %v", delivered)
	}
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
	if last.calls != 1 {
		t.Fatalf("a failing sink must not stop later sinks")
	}
}

func TestFanoutCloseClosesPublishers(t *testing.T) {
	a := &stubPublisher{id: "a"}
	b := &stubPublisher{id: "b", closeErr: errors.New("close failed")}
	fanout := NewFanout([]Publisher{a, b})

	if err := fanout.Close(); err == nil {
		t.Fatalf("expected close error")
	}
	if !a.closed || !b.closed {
		t.Fatalf("expected both publishers closed")
	}
}

func TestBuildAllWithDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	pubs, err := BuildAll(context.Background(), reg, []PublisherConfig{
		{ID: "http", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{URL: "https://example.com"}},
		{ID: "local", Type: TypeFile, File: &FilePublisherConfig{Dir: t.TempDir()}},
	}, nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(pubs) != 2 {
		t.Fatalf("expected 2 publishers, got %d", len(pubs))
	}
}

func TestBuildAllUnknownType(t *testing.T) {
	_, err := BuildAll(context.Background(), DefaultRegistry(), []PublisherConfig{{ID: "x", Type: "carrier-pigeon"}}, nil)
	if err == nil {
		t.Fatalf("expected error for unknown publisher type")
	}
}

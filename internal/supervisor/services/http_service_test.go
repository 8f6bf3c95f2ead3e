// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

type fakeServer struct {
	listenErr   error
	blockListen bool
	stop        chan struct{}
	shutdowns   atomic.Int64
}

func newFakeServer() *fakeServer {
	return &fakeServer{blockListen: true, stop: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	if !f.blockListen {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(ctx context.Context) error {
	f.shutdowns.Add(1)
	close(f.stop)
	return nil
}

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	srv := newFakeServer()
	svc := NewHTTPServerService(srv, ":0", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if got := srv.shutdowns.Load(); got != 1 {
		t.Fatalf("Shutdown called %d times, want 1", got)
	}
}

func TestHTTPServiceReturnsListenError(t *testing.T) {
	wantErr := errors.New("bind: address already in use")
	srv := &fakeServer{listenErr: wantErr}
	svc := NewHTTPServerService(srv, ":0", time.Second)

	err := svc.Serve(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("Serve returned %v, want %v", err, wantErr)
	}
}

func TestHTTPServiceTreatsServerClosedAsClean(t *testing.T) {
	srv := &fakeServer{listenErr: http.ErrServerClosed}
	svc := NewHTTPServerService(srv, ":0", time.Second)

	if err := svc.Serve(context.Background()); err != nil {
		t.Fatalf("Serve returned %v, want nil", err)
	}
}

func TestHTTPServiceString(t *testing.T) {
	svc := NewHTTPServerService(newFakeServer(), ":0", 0)
	if got := svc.String(); got != "http-server" {
		t.Fatalf("String() = %q", got)
	}
}

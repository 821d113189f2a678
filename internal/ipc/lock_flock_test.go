//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package ipc

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestHeldInstanceLockRefusesStart(t *testing.T) {
	path := socketPath(t)
	lock, err := acquireInstanceLock(path + ".lock")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer lock.release()

	srv := NewServer(path, &recordingHandler{}, quietLogger())
	if err := srv.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("start under a held lock = %v, want ErrAlreadyRunning", err)
	}
}

func TestConcurrentStartsLeaveOneReachableServer(t *testing.T) {
	path := socketPath(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started []*Server
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			srv := NewServer(path, &recordingHandler{}, quietLogger())
			err := srv.Start(ctx)
			if err != nil {
				if !errors.Is(err, ErrAlreadyRunning) {
					t.Errorf("start: %v", err)
				}
				return
			}
			mu.Lock()
			started = append(started, srv)
			mu.Unlock()
		}()
	}
	wg.Wait()
	defer func() {
		cancel()
		for _, srv := range started {
			srv.Stop()
		}
	}()

	if len(started) != 1 {
		t.Fatalf("%d servers started, want exactly 1", len(started))
	}
	if err := NewClient(path).SendStop(); err != nil {
		t.Fatalf("winning server unreachable: %v", err)
	}
}

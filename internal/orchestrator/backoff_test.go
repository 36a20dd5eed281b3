package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ShayCichocki/brigade/internal/store"
	"github.com/ShayCichocki/brigade/pkg/models"
)

func TestFixedBackoff(t *testing.T) {
	start := time.Now()
	if err := (FixedBackoff{Interval: 10 * time.Millisecond}).Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("returned after %v, want >= 10ms", elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (FixedBackoff{Interval: time.Hour}).Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled Wait = %v", err)
	}
	if err := (FixedBackoff{}).Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("zero-interval canceled Wait = %v", err)
	}
	if err := (FixedBackoff{}).Wait(context.Background()); err != nil {
		t.Errorf("zero-interval Wait = %v", err)
	}
}

func TestNotifyBackoff_WakesOnChange(t *testing.T) {
	s := store.NewMemory()
	b := NotifyBackoff{Notifier: s, Fallback: time.Hour}

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Put(context.Background(), testNS, "t1", &models.Task{ID: "t1"})
	}()

	done := make(chan error, 1)
	go func() { done <- b.Wait(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("NotifyBackoff did not wake on store change")
	}
}

func TestNotifyBackoff_Fallback(t *testing.T) {
	b := NotifyBackoff{Notifier: store.NewMemory(), Fallback: 5 * time.Millisecond}
	if err := b.Wait(context.Background()); err != nil {
		t.Errorf("Wait: %v", err)
	}

	nilNotifier := NotifyBackoff{Fallback: 5 * time.Millisecond}
	if err := nilNotifier.Wait(context.Background()); err != nil {
		t.Errorf("Wait without notifier: %v", err)
	}
}

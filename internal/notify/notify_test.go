package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/shepherd/internal/loggy"
)

func TestEmitDeliversToSubscribers(t *testing.T) {
	s := NewService(loggy.NewNoopLogger())
	defer s.Close()

	events, cancel := s.Subscribe()
	defer cancel()

	emitted := s.Emit(LevelInfo, "project discovered", "/watch/app")

	select {
	case got := <-events:
		assert.Equal(t, emitted.ID, got.ID)
		assert.Equal(t, LevelInfo, got.Level)
		assert.Equal(t, "project discovered", got.Message)
		assert.Equal(t, "/watch/app", got.Project)
	case <-time.After(time.Second):
		t.Fatal("expected an event")
	}
}

func TestEmitAssignsUniqueIDs(t *testing.T) {
	s := NewService(loggy.NewNoopLogger())
	defer s.Close()

	a := s.Info("first", "")
	b := s.Info("second", "")
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEmpty(t, a.ID)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := NewService(loggy.NewNoopLogger())
	defer s.Close()

	_, cancel := s.Subscribe()
	defer cancel()

	// Emit more events than the buffer holds without reading any of them.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			s.Info("flood", "")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a slow subscriber")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	s := NewService(loggy.NewNoopLogger())
	defer s.Close()

	events, cancel := s.Subscribe()
	cancel()

	_, open := <-events
	assert.False(t, open)

	// Cancelling twice is safe
	cancel()
}

func TestNotifications(t *testing.T) {
	s := NewService(loggy.NewNoopLogger())
	defer s.Close()

	notifications, cancel := s.SubscribeNotifications()
	defer cancel()

	s.Notify("Shepherd", "Found 3 new projects")

	select {
	case n := <-notifications:
		assert.Equal(t, "Shepherd", n.Title)
		assert.Equal(t, "Found 3 new projects", n.Body)
	case <-time.After(time.Second):
		t.Fatal("expected a notification")
	}
}

func TestCloseDropsSubscribers(t *testing.T) {
	s := NewService(loggy.NewNoopLogger())

	events, _ := s.Subscribe()
	notifications, _ := s.SubscribeNotifications()

	s.Close()

	_, open := <-events
	require.False(t, open)
	_, open2 := <-notifications
	require.False(t, open2)
}

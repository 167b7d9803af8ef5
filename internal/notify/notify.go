// Package notify is the log-event and user-notification sink for the agent.
// Components emit leveled events; UI collaborators subscribe to a stream of
// them instead of polling.
package notify

import (
	"sync"
	"time"

	"github.com/tildaslashalef/shepherd/internal/loggy"
	"github.com/tildaslashalef/shepherd/internal/ulid"
)

// Level classifies a log event
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// Event is a single leveled log event
type Event struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Project string    `json:"project,omitempty"`
	Time    time.Time `json:"time"`
}

// Notification is a user-facing notification with a title and body
type Notification struct {
	Title string    `json:"title"`
	Body  string    `json:"body"`
	Time  time.Time `json:"time"`
}

// subscriber buffer size. Slow subscribers drop events rather than block
// the emitting component.
const subscriberBuffer = 64

// Service fans events out to subscribers and mirrors them into the logger
type Service struct {
	mu         sync.Mutex
	nextID     int
	eventSubs  map[int]chan Event
	notifySubs map[int]chan Notification
	logger     *loggy.Logger
}

// NewService creates a new notification service
func NewService(logger *loggy.Logger) *Service {
	return &Service{
		eventSubs:  make(map[int]chan Event),
		notifySubs: make(map[int]chan Notification),
		logger:     logger,
	}
}

// Emit publishes a leveled log event. Project may be empty for events that
// are not tied to a single project.
func (s *Service) Emit(level Level, message, project string) Event {
	event := Event{
		ID:      ulid.EventID(),
		Level:   level,
		Message: message,
		Project: project,
		Time:    time.Now(),
	}

	switch level {
	case LevelWarning:
		s.logger.Warn(message, "project", project)
	case LevelError:
		s.logger.Error(message, "project", project)
	default:
		s.logger.Info(message, "project", project)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.eventSubs {
		select {
		case ch <- event:
		default:
		}
	}

	return event
}

// Info emits an info-level event
func (s *Service) Info(message, project string) Event {
	return s.Emit(LevelInfo, message, project)
}

// Warning emits a warning-level event
func (s *Service) Warning(message, project string) Event {
	return s.Emit(LevelWarning, message, project)
}

// Error emits an error-level event
func (s *Service) Error(message, project string) Event {
	return s.Emit(LevelError, message, project)
}

// Success emits a success-level event
func (s *Service) Success(message, project string) Event {
	return s.Emit(LevelSuccess, message, project)
}

// Notify publishes a user-facing notification
func (s *Service) Notify(title, body string) Notification {
	n := Notification{
		Title: title,
		Body:  body,
		Time:  time.Now(),
	}

	s.logger.Info("Notification", "title", title, "body", body)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.notifySubs {
		select {
		case ch <- n:
		default:
		}
	}

	return n
}

// Subscribe returns a channel of log events and a cancel function.
// The channel is closed when the cancel function is called.
func (s *Service) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Event, subscriberBuffer)
	s.eventSubs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.eventSubs[id]; ok {
			delete(s.eventSubs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// SubscribeNotifications returns a channel of user notifications and a
// cancel function.
func (s *Service) SubscribeNotifications() (<-chan Notification, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Notification, subscriberBuffer)
	s.notifySubs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.notifySubs[id]; ok {
			delete(s.notifySubs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close drops all subscribers
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, ch := range s.eventSubs {
		delete(s.eventSubs, id)
		close(ch)
	}
	for id, ch := range s.notifySubs {
		delete(s.notifySubs, id)
		close(ch)
	}
}

package notify

import (
	"context"
	"errors"
	"time"

	"github.com/kdimtricp/shottime/internal/models"
)

var ErrNotificationsBlocked = errors.New("notification permission not granted")

type EventType string

const (
	EventWelcome      EventType = "welcome"
	EventCountdown    EventType = "countdown"
	EventSlots        EventType = "slots"
	EventNotification EventType = "notification"
	EventTone         EventType = "tone"
	EventCapture      EventType = "capture"
	EventAnalysis     EventType = "analysis"
	EventDownload     EventType = "download"
	EventError        EventType = "error"
	EventPong         EventType = "pong"
)

type Event struct {
	Type      EventType `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

func NewEvent(t EventType, payload any) Event {
	return Event{Type: t, Payload: payload, Timestamp: time.Now().Unix()}
}

type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag,omitempty"`
}

// ThirtySecondWarning is shown half a minute before a scheduled screenshot.
var ThirtySecondWarning = Notification{
	Title: "스크린샷 타임 ⏰",
	Body:  "30초 후 스크린샷 시간입니다!",
	Tag:   "screenshot-30s",
}

type ToneEmitter interface {
	PlayTone(ctx context.Context, tone models.Tone)
}

type SystemNotifier interface {
	Permission() models.PermissionState
	Notify(ctx context.Context, n Notification) error
}

type EventPublisher interface {
	Publish(ev Event)
}

// FanOut delivers notifications to every notifier that has permission.
type FanOut []SystemNotifier

func (f FanOut) Permission() models.PermissionState {
	state := models.PermissionDenied
	for _, n := range f {
		switch n.Permission() {
		case models.PermissionGranted:
			return models.PermissionGranted
		case models.PermissionPrompt:
			state = models.PermissionPrompt
		}
	}
	return state
}

func (f FanOut) Notify(ctx context.Context, n Notification) error {
	var errs []error
	delivered := false
	for _, notifier := range f {
		if notifier.Permission() != models.PermissionGranted {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered = true
	}
	if !delivered && len(errs) == 0 {
		return ErrNotificationsBlocked
	}
	return errors.Join(errs...)
}

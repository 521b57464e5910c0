package service

import (
	"context"

	"github.com/dukerupert/fellowship/internal/push"
	"github.com/dukerupert/fellowship/internal/websocket"
)

// Publisher delivers realtime messages. *websocket.Hub implements it.
type Publisher interface {
	Broadcast(msg websocket.Message)
	SendToUser(userID int64, msg websocket.Message)
	Publish(topic string, msg websocket.Message)
}

// Pusher sends web push notifications. *push.Service implements it.
type Pusher interface {
	NotifyUser(ctx context.Context, userID int64, payload push.Payload) (int, error)
}

// Mailer sends transactional email. *email.Client implements it.
type Mailer interface {
	Configured() bool
	SendQuestionAnswered(ctx context.Context, toEmail, displayName, question, answer string, questionID int64) error
}

type nopPublisher struct{}

func (nopPublisher) Broadcast(websocket.Message)         {}
func (nopPublisher) SendToUser(int64, websocket.Message) {}
func (nopPublisher) Publish(string, websocket.Message)   {}

package wsgateway

import (
	"fmt"

	"github.com/mohamedkhairy/strikeview/pkg/logger"
)

// MessageType represents the type of websocket message
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypePing        MessageType = "ping"
	MessageTypePong        MessageType = "pong"
	MessageTypeView        MessageType = "view"
	MessageTypeAlert       MessageType = "alert"
	MessageTypeSuccess     MessageType = "success"
	MessageTypeError       MessageType = "error"
)

// Topics a client can subscribe to. A connection with no subscriptions
// receives every topic.
const (
	TopicView   = "view"
	TopicAlerts = "alerts"
)

var knownTopics = map[string]bool{TopicView: true, TopicAlerts: true}

// ClientMessage represents a message from the client
type ClientMessage struct {
	Type   string   `json:"type"`
	Topic  string   `json:"topic,omitempty"`
	Topics []string `json:"topics,omitempty"`
}

// ServerMessage represents a message to the client
type ServerMessage struct {
	Type    MessageType `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

func (m *ClientMessage) topics() []string {
	if m.Topic != "" {
		return append([]string{m.Topic}, m.Topics...)
	}
	return m.Topics
}

// HandleClientMessage handles a message from the client
func (c *Connection) HandleClientMessage(msg *ClientMessage) error {
	switch MessageType(msg.Type) {
	case MessageTypeSubscribe, MessageTypeUnsubscribe:
		topics := msg.topics()
		if len(topics) == 0 {
			return c.SendError("invalid_request", "topic or topics field required")
		}
		for _, topic := range topics {
			if !knownTopics[topic] {
				return c.SendError("unknown_topic", fmt.Sprintf("unknown topic: %s", topic))
			}
		}

		action := "subscribed"
		for _, topic := range topics {
			if MessageType(msg.Type) == MessageTypeSubscribe {
				c.Subscribe(topic)
			} else {
				c.Unsubscribe(topic)
				action = "unsubscribed"
			}
		}
		logger.Debug("Client topics changed",
			logger.String("connection_id", c.ID),
			logger.String("action", action),
			logger.Strings("topics", topics),
		)
		return c.SendSuccess(action, map[string]interface{}{"topics": topics})

	case MessageTypePing:
		return c.Enqueue(ServerMessage{Type: MessageTypePong})

	default:
		return c.SendError("unknown_message_type", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

// SendSuccess queues a success message for the client
func (c *Connection) SendSuccess(action string, data interface{}) error {
	return c.Enqueue(ServerMessage{
		Type: MessageTypeSuccess,
		Data: map[string]interface{}{
			"action": action,
			"data":   data,
		},
	})
}

// SendError queues an error message for the client
func (c *Connection) SendError(code string, message string) error {
	return c.Enqueue(ServerMessage{
		Type:    MessageTypeError,
		Code:    code,
		Message: message,
	})
}

package wsgateway

import (
	"encoding/json"
	"testing"
)

func newTestConnection() *Connection {
	return NewConnection("conn-1", "127.0.0.1:5000", nil)
}

func TestConnection_SubscribeUnsubscribe(t *testing.T) {
	conn := newTestConnection()

	conn.Subscribe(TopicAlerts)
	if !conn.IsSubscribed(TopicAlerts) {
		t.Error("Expected connection to be subscribed to alerts")
	}

	conn.Unsubscribe(TopicAlerts)
	if conn.IsSubscribed(TopicAlerts) {
		t.Error("Expected connection to be unsubscribed from alerts")
	}
}

func TestConnection_Wants(t *testing.T) {
	conn := newTestConnection()

	// no subscriptions means every topic
	if !conn.Wants(TopicView) || !conn.Wants(TopicAlerts) {
		t.Error("Expected an unfiltered connection to want every topic")
	}

	conn.Subscribe(TopicAlerts)
	if !conn.Wants(TopicAlerts) {
		t.Error("Expected connection to want alerts")
	}
	if conn.Wants(TopicView) {
		t.Error("Expected connection not to want view updates")
	}
}

func TestConnection_EnqueueDropsWhenFull(t *testing.T) {
	conn := newTestConnection()

	for i := 0; i < sendBuffer; i++ {
		if err := conn.Enqueue(ServerMessage{Type: MessageTypePong}); err != nil {
			t.Fatalf("Unexpected error at %d: %v", i, err)
		}
	}
	if err := conn.Enqueue(ServerMessage{Type: MessageTypePong}); err != ErrSendBufferFull {
		t.Errorf("Expected ErrSendBufferFull, got %v", err)
	}
}

func TestConnection_CloseIsIdempotent(t *testing.T) {
	conn := newTestConnection()
	conn.Close()
	conn.Close()

	if err := conn.Enqueue(ServerMessage{Type: MessageTypePong}); err == nil {
		t.Error("Expected enqueue on a closed connection to fail")
	}
}

func TestHandleClientMessage(t *testing.T) {
	tests := []struct {
		name       string
		msg        ClientMessage
		wantType   MessageType
		wantCode   string
		subscribed []string
	}{
		{"subscribe one", ClientMessage{Type: "subscribe", Topic: TopicAlerts}, MessageTypeSuccess, "", []string{TopicAlerts}},
		{"subscribe many", ClientMessage{Type: "subscribe", Topics: []string{TopicAlerts, TopicView}}, MessageTypeSuccess, "", []string{TopicAlerts, TopicView}},
		{"missing topic", ClientMessage{Type: "subscribe"}, MessageTypeError, "invalid_request", nil},
		{"unknown topic", ClientMessage{Type: "subscribe", Topic: "toplist"}, MessageTypeError, "unknown_topic", nil},
		{"ping", ClientMessage{Type: "ping"}, MessageTypePong, "", nil},
		{"unknown type", ClientMessage{Type: "hello"}, MessageTypeError, "unknown_message_type", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newTestConnection()
			if err := conn.HandleClientMessage(&tt.msg); err != nil {
				t.Fatalf("HandleClientMessage: %v", err)
			}

			var reply ServerMessage
			if err := json.Unmarshal(<-conn.Send, &reply); err != nil {
				t.Fatalf("Failed to decode reply: %v", err)
			}
			if reply.Type != tt.wantType {
				t.Errorf("Expected reply type %s, got %s", tt.wantType, reply.Type)
			}
			if reply.Code != tt.wantCode {
				t.Errorf("Expected code %q, got %q", tt.wantCode, reply.Code)
			}
			for _, topic := range tt.subscribed {
				if !conn.IsSubscribed(topic) {
					t.Errorf("Expected subscription to %s", topic)
				}
			}
		})
	}
}

func TestHandleClientMessage_Unsubscribe(t *testing.T) {
	conn := newTestConnection()
	conn.Subscribe(TopicView)

	if err := conn.HandleClientMessage(&ClientMessage{Type: "unsubscribe", Topic: TopicView}); err != nil {
		t.Fatalf("HandleClientMessage: %v", err)
	}
	if conn.IsSubscribed(TopicView) {
		t.Error("Expected view to be unsubscribed")
	}
}

package server

import (
	"encoding/json"
	"fmt"
)

// Frame type tags. The tag values and field names are a wire contract with
// the fixed client; do not rename them.
const (
	frameChatMessage     = "chatMessage"
	frameTypingIndicator = "typingIndicator"
	frameReadReceipt     = "readReceipt"
	frameStatus          = "status"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// inboundFrame is the envelope for client-to-server frames. The sender
// identity is never read from the payload; it comes from the connection
// binding.
type inboundFrame struct {
	Type      string `json:"type"`
	ToUserID  string `json:"to_user_id"`
	Message   string `json:"message"`
	IsTyping  bool   `json:"is_typing"`
	MessageID string `json:"message_id"`
}

// parseInbound decodes and validates one client frame.
func parseInbound(data []byte) (inboundFrame, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return inboundFrame{}, fmt.Errorf("decode frame: %w", err)
	}
	switch frame.Type {
	case frameChatMessage, frameTypingIndicator, frameReadReceipt:
	default:
		return inboundFrame{}, fmt.Errorf("unsupported frame type %q", frame.Type)
	}
	if frame.ToUserID == "" {
		return inboundFrame{}, fmt.Errorf("frame type %q missing to_user_id", frame.Type)
	}
	return frame, nil
}

// chatFrame is the delivered form of a chat message, enriched server-side
// with the sender's display name, a timestamp, and a generated message id.
type chatFrame struct {
	Type         string `json:"type"`
	FromUserID   string `json:"from_user_id"`
	FromUsername string `json:"from_username"`
	ToUserID     string `json:"to_user_id"`
	Message      string `json:"message"`
	Timestamp    string `json:"timestamp"`
	MessageID    string `json:"message_id"`
}

// typingFrame mirrors the inbound shape with the sender id attached.
type typingFrame struct {
	Type       string `json:"type"`
	FromUserID string `json:"from_user_id"`
	IsTyping   bool   `json:"is_typing"`
}

// receiptFrame tells the original sender that the reader displayed a message.
type receiptFrame struct {
	Type       string `json:"type"`
	FromUserID string `json:"from_user_id"`
	MessageID  string `json:"message_id"`
}

// statusFrame announces a reachability change to a user's contacts.
type statusFrame struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Status   string `json:"status"`
}

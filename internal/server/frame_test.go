package server

import "testing"

func TestParseInbound(t *testing.T) {
	frame, err := parseInbound([]byte(`{"type":"chatMessage","to_user_id":"u2","message":"hi"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Type != frameChatMessage || frame.ToUserID != "u2" || frame.Message != "hi" {
		t.Fatalf("unexpected frame: %+v", frame)
	}

	frame, err = parseInbound([]byte(`{"type":"typingIndicator","to_user_id":"u2","is_typing":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Type != frameTypingIndicator || !frame.IsTyping {
		t.Fatalf("unexpected frame: %+v", frame)
	}

	frame, err = parseInbound([]byte(`{"type":"readReceipt","to_user_id":"u2","message_id":"m1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Type != frameReadReceipt || frame.MessageID != "m1" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestParseInboundRejects(t *testing.T) {
	cases := map[string]string{
		"invalid json":      `{oops`,
		"unknown type":      `{"type":"statusReport","to_user_id":"u2"}`,
		"server-only type":  `{"type":"status","to_user_id":"u2"}`,
		"missing recipient": `{"type":"chatMessage","message":"hi"}`,
		"empty payload":     ``,
	}
	for name, payload := range cases {
		if _, err := parseInbound([]byte(payload)); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
}

// Command mockclient is an end-to-end smoke client for a running relay. It
// registers two throwaway users, records them as contacts, opens a websocket
// for each, relays a chat message and a typing signal from the sender to the
// receiver, then disconnects the receiver and waits for the offline event.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type clientConfig struct {
	serverURL string
	message   string
	timeout   time.Duration
}

type authResponse struct {
	SessionKey string `json:"session_key"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
}

func main() {
	var cfg clientConfig
	flag.StringVar(&cfg.serverURL, "server", "http://127.0.0.1:3030", "Base URL of the relay")
	flag.StringVar(&cfg.message, "message", "hello from mockclient", "Chat message to relay")
	flag.DurationVar(&cfg.timeout, "timeout", 15*time.Second, "Overall timeout for the flow")
	flag.Parse()

	if err := run(cfg); err != nil {
		log.Fatalf("mockclient failed: %v", err)
	}
	log.Printf("mockclient completed against %s", cfg.serverURL)
}

func run(cfg clientConfig) error {
	suffix := uuid.NewString()[:8]
	sender, err := register(cfg.serverURL, "sender-"+suffix)
	if err != nil {
		return fmt.Errorf("register sender: %w", err)
	}
	receiver, err := register(cfg.serverURL, "receiver-"+suffix)
	if err != nil {
		return fmt.Errorf("register receiver: %w", err)
	}

	if err := addContact(cfg.serverURL, sender.SessionKey, receiver.Username); err != nil {
		return fmt.Errorf("add contact: %w", err)
	}

	senderWS, err := dialWS(cfg.serverURL, sender.SessionKey)
	if err != nil {
		return fmt.Errorf("dial sender ws: %w", err)
	}
	defer senderWS.Close()

	receiverWS, err := dialWS(cfg.serverURL, receiver.SessionKey)
	if err != nil {
		return fmt.Errorf("dial receiver ws: %w", err)
	}
	defer receiverWS.Close()

	// The sender sees the receiver come online before anything else.
	if frame, err := readFrame(senderWS, cfg.timeout); err != nil {
		return fmt.Errorf("await receiver online: %w", err)
	} else if frame["type"] != "status" || frame["status"] != "online" {
		return fmt.Errorf("expected online status frame, got %v", frame)
	}
	log.Printf("receiver %s online", receiver.Username)

	typing := map[string]any{"type": "typingIndicator", "to_user_id": receiver.UserID, "is_typing": true}
	if err := senderWS.WriteJSON(typing); err != nil {
		return fmt.Errorf("send typing: %w", err)
	}
	chat := map[string]any{"type": "chatMessage", "to_user_id": receiver.UserID, "message": cfg.message}
	if err := senderWS.WriteJSON(chat); err != nil {
		return fmt.Errorf("send chat: %w", err)
	}

	for {
		frame, err := readFrame(receiverWS, cfg.timeout)
		if err != nil {
			return fmt.Errorf("await chat frame: %w", err)
		}
		if frame["type"] != "chatMessage" {
			log.Printf("receiver got %v frame", frame["type"])
			continue
		}
		if frame["message"] != cfg.message || frame["from_user_id"] != sender.UserID {
			return fmt.Errorf("unexpected chat frame: %v", frame)
		}
		log.Printf("message relayed: %q (id %v)", frame["message"], frame["message_id"])
		break
	}

	if err := receiverWS.Close(); err != nil {
		return fmt.Errorf("close receiver ws: %w", err)
	}
	frame, err := readFrame(senderWS, cfg.timeout)
	if err != nil {
		return fmt.Errorf("await offline status: %w", err)
	}
	if frame["type"] != "status" || frame["status"] != "offline" {
		return fmt.Errorf("expected offline status frame, got %v", frame)
	}
	log.Printf("receiver %s offline", receiver.Username)
	return nil
}

func register(serverURL, username string) (authResponse, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": "mock-" + username})
	resp, err := http.Post(serverURL+"/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return authResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return authResponse{}, fmt.Errorf("register returned %s", resp.Status)
	}
	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return authResponse{}, err
	}
	return auth, nil
}

func addContact(serverURL, sessionKey, contactUsername string) error {
	body, _ := json.Marshal(map[string]string{"contact_username": contactUsername})
	req, err := http.NewRequest(http.MethodPost, serverURL+"/contacts", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-Key", sessionKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("add contact returned %s", resp.Status)
	}
	return nil
}

func dialWS(serverURL, token string) (*websocket.Conn, error) {
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	return conn, err
}

func readFrame(conn *websocket.Conn, timeout time.Duration) (map[string]any, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, err
	}
	return frame, nil
}

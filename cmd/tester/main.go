// Command tester is a manual smoke client: it creates a room over HTTP,
// attaches a websocket session, posts a message, and prints every event the
// server pushes back.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerAddr string `envconfig:"SERVER_ADDR" default:"localhost:8080"`
	Username   string `envconfig:"TESTER_USERNAME" default:"tester"`
	// TESTER_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"TESTER_COLOURS" default:"true"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("config error: %v", err)
	}

	// 1. Create a demo room
	body, _ := json.Marshal(map[string]any{
		"Username": cfg.Username,
		"Policy":   "instant",
		"IsDemo":   true,
	})
	resp, err := http.Post(
		fmt.Sprintf("http://%s/api/rooms", cfg.ServerAddr),
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		log.Fatalf("room creation failed: %v", err)
	}
	defer resp.Body.Close()

	var created struct {
		Code  string `json:"code"`
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		log.Fatalf("invalid creation response: %v", err)
	}
	banner(cfg, fmt.Sprintf("  ====== room %s created ======", created.Code))

	// 2. Attach a websocket session
	wsURL := fmt.Sprintf("ws://%s/ws/%s?token=%s", cfg.ServerAddr, created.Code, created.Token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	// 3. Post a message through the socket
	frame, _ := json.Marshal(map[string]any{
		"type":    "post_message",
		"content": "hello from the tester",
	})
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		log.Fatalf("post failed: %v", err)
	}

	// 4. Print whatever the engine pushes for a few seconds
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			banner(cfg, "  ====== stream closed ======")
			return
		}
		fmt.Println(string(raw))
	}
}

func banner(cfg Config, text string) {
	if cfg.Colours {
		text = color.New(color.BgBlack, color.FgGreen).Render(text)
	}
	fmt.Println(text)
}

package socketprovider

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/collabotd/collabot/internal/model"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := newListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func dial(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	var conn *websocket.Conn
	var err error
	for i := 0; i < 20; i++ {
		conn, _, err = websocket.DefaultDialer.Dial("ws://"+addr+"/rpc", nil)
		if err == nil {
			return conn
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("dial: %v", err)
	return nil
}

func TestSendBroadcastsToConnectedClients(t *testing.T) {
	addr := freeAddr(t)
	p := New(Config{Addr: addr})
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	conn := dial(t, addr)
	defer conn.Close()
	time.Sleep(50 * time.Millisecond)

	if err := p.Send(model.ChannelMessage{Type: "chat", Text: "hi"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var env struct {
		Method string               `json:"method"`
		Params model.ChannelMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Method != "channel_message" || env.Params.Text != "hi" {
		t.Fatalf("unexpected notification: %+v", env)
	}
}

func TestRequestHandlerRepliesOnSameConnection(t *testing.T) {
	addr := freeAddr(t)
	p := New(Config{Addr: addr})
	p.SetRequestHandler(func(raw []byte) []byte {
		return []byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`)
	})
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	conn := dial(t, addr)
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":1,"method":"list_projects"}`)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(data) != `{"jsonrpc":"2.0","id":1,"result":{"ok":true}}` {
		t.Fatalf("unexpected reply: %s", data)
	}
}

func TestReadyReflectsServerLifecycle(t *testing.T) {
	p := New(Config{Addr: freeAddr(t)})
	if p.Ready() {
		t.Fatalf("expected not ready before Start")
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !p.Ready() {
		t.Fatalf("expected ready after Start")
	}
	p.Stop()
}

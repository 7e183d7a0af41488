// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

package dstate

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestServer(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestHandleState(t *testing.T) {
	store := New()
	store.SetInfo("ups.model", "GXE")
	store.DataOK()
	s := NewServer(store, ":0", nil)

	ts := httptest.NewServer(http.HandlerFunc(s.handleState))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := snap.Facts["ups.model"]; got != "GXE" {
		t.Errorf("ups.model = %q", got)
	}
	if snap.Stale {
		t.Error("snapshot stale after DataOK")
	}
}

func TestHandleWS_GreetsWithSnapshot(t *testing.T) {
	store := New()
	store.SetInfo("ups.model", "GXE")
	s := NewServer(store, ":0", nil)

	ts := httptest.NewServer(http.HandlerFunc(s.handleWS))
	defer ts.Close()
	conn := dialTestServer(t, ts)

	var snap Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("greeting: %v", err)
	}
	if got := snap.Facts["ups.model"]; got != "GXE" {
		t.Errorf("greeting ups.model = %q", got)
	}
}

func TestHandleWS_CommandDispatch(t *testing.T) {
	store := New()
	store.AddCommand("load.on")
	executed := make(chan string, 1)
	s := NewServer(store, ":0", func(name string) error {
		executed <- name
		return nil
	})

	ts := httptest.NewServer(http.HandlerFunc(s.handleWS))
	defer ts.Close()
	conn := dialTestServer(t, ts)

	var snap Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("greeting: %v", err)
	}

	if err := conn.WriteJSON(commandRequest{Command: "load.on"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var rep commandReply
	if err := conn.ReadJSON(&rep); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if rep.Result != "ok" {
		t.Errorf("result = %q, want %q (error %q)", rep.Result, "ok", rep.Error)
	}
	select {
	case name := <-executed:
		if name != "load.on" {
			t.Errorf("executed %q, want %q", name, "load.on")
		}
	case <-time.After(time.Second):
		t.Error("command never reached the dispatcher")
	}
}

func TestHandleWS_UnknownCommand(t *testing.T) {
	store := New()
	s := NewServer(store, ":0", func(name string) error {
		t.Errorf("dispatcher called for unregistered command %q", name)
		return nil
	})

	ts := httptest.NewServer(http.HandlerFunc(s.handleWS))
	defer ts.Close()
	conn := dialTestServer(t, ts)

	var snap Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("greeting: %v", err)
	}

	if err := conn.WriteJSON(commandRequest{Command: "beeper.mute"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var rep commandReply
	if err := conn.ReadJSON(&rep); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if rep.Result != "unknown" {
		t.Errorf("result = %q, want %q", rep.Result, "unknown")
	}
}

func TestHandleWS_FailedCommand(t *testing.T) {
	store := New()
	store.AddCommand("load.off")
	s := NewServer(store, ":0", func(name string) error {
		return errors.New("command failed")
	})

	ts := httptest.NewServer(http.HandlerFunc(s.handleWS))
	defer ts.Close()
	conn := dialTestServer(t, ts)

	var snap Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("greeting: %v", err)
	}

	if err := conn.WriteJSON(commandRequest{Command: "load.off"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var rep commandReply
	if err := conn.ReadJSON(&rep); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if rep.Result != "failed" || rep.Error == "" {
		t.Errorf("reply = %+v, want failed with error text", rep)
	}
}

func TestBroadcast(t *testing.T) {
	store := New()
	s := NewServer(store, ":0", nil)

	ts := httptest.NewServer(http.HandlerFunc(s.handleWS))
	defer ts.Close()
	conn := dialTestServer(t, ts)

	var snap Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("greeting: %v", err)
	}

	store.SetInfo("ups.status", "OB")
	s.broadcast(store.Snapshot())

	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if got := snap.Facts["ups.status"]; got != "OB" {
		t.Errorf("broadcast ups.status = %q", got)
	}
}

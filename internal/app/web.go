// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/wheel_load/internal/config"
	"github.com/relabs-tech/wheel_load/internal/head"
	"github.com/relabs-tech/wheel_load/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// liveState is the latest data seen on MQTT.
type liveState struct {
	mu       sync.RWMutex
	snapshot *telemetry.Snapshot
	subs     map[int]telemetry.SubStatus
	screen   []byte
	watchers map[chan telemetry.Snapshot]struct{}
}

func newLiveState() *liveState {
	return &liveState{
		subs:     map[int]telemetry.SubStatus{},
		watchers: map[chan telemetry.Snapshot]struct{}{},
	}
}

// setSnapshot stores s and hands it to every watcher that is keeping up.
func (l *liveState) setSnapshot(s telemetry.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshot = &s
	for ch := range l.watchers {
		select {
		case ch <- s:
		default:
		}
	}
}

func (l *liveState) setSub(s telemetry.SubStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs[s.Wheel] = s
}

func (l *liveState) setScreen(bmp []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.screen = append(l.screen[:0], bmp...)
}

// watch registers a snapshot stream; the returned func unregisters it.
func (l *liveState) watch() (<-chan telemetry.Snapshot, func()) {
	ch := make(chan telemetry.Snapshot, 4)
	l.mu.Lock()
	l.watchers[ch] = struct{}{}
	l.mu.Unlock()
	return ch, func() {
		l.mu.Lock()
		delete(l.watchers, ch)
		l.mu.Unlock()
	}
}

func (l *liveState) current() (telemetry.Snapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.snapshot == nil {
		return telemetry.Snapshot{}, false
	}
	return *l.snapshot, true
}

// commander forwards operator actions to the head.
type commander interface {
	Tare() error
	ModeAdvance() error
}

type mqttCommander struct {
	client mqtt.Client
	tare   string
	mode   string
}

func (c *mqttCommander) publish(topic string) error {
	token := c.client.Publish(topic, 0, false, []byte("1"))
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return nil
}

func (c *mqttCommander) Tare() error        { return c.publish(c.tare) }
func (c *mqttCommander) ModeAdvance() error { return c.publish(c.mode) }

// LiveAction is sent by websocket clients.
type LiveAction struct {
	Action string `json:"action"` // "tare" or "mode"
}

// LiveMessage is pushed to websocket clients.
type LiveMessage struct {
	Type     string              `json:"type"` // "snapshot", "status" or "error"
	Snapshot *telemetry.Snapshot `json:"snapshot,omitempty"`
	Message  string              `json:"message,omitempty"`
}

func runAction(cmd commander, action string) error {
	switch action {
	case "tare":
		return cmd.Tare()
	case "mode":
		return cmd.ModeAdvance()
	default:
		return fmt.Errorf("unknown action: %s", action)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

// newWebHandler serves the API, the live websocket and the static files.
func newWebHandler(state *liveState, cmd commander, staticDir string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/snapshot", func(w http.ResponseWriter, r *http.Request) {
		s, ok := state.current()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, s)
	})

	mux.HandleFunc("/api/subs", func(w http.ResponseWriter, r *http.Request) {
		state.mu.RLock()
		subs := make([]telemetry.SubStatus, 0, len(state.subs))
		for _, s := range state.subs {
			subs = append(subs, s)
		}
		state.mu.RUnlock()
		sort.Slice(subs, func(i, j int) bool { return subs[i].Wheel < subs[j].Wheel })
		writeJSON(w, subs)
	})

	mux.HandleFunc("/api/screen.bmp", func(w http.ResponseWriter, r *http.Request) {
		state.mu.RLock()
		bmp := append([]byte(nil), state.screen...)
		state.mu.RUnlock()
		if len(bmp) == 0 {
			http.Error(w, "no screen yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/bmp")
		w.Write(bmp)
	})

	for _, action := range []string{"tare", "mode"} {
		action := action
		mux.HandleFunc("/api/"+action, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			if err := runAction(cmd, action); err != nil {
				log.Printf("web: %s: %v", action, err)
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
			log.Printf("web: %s requested", action)
			w.WriteHeader(http.StatusNoContent)
		})
	}

	mux.HandleFunc("/ws/live", func(w http.ResponseWriter, r *http.Request) {
		handleLiveWS(w, r, state, cmd)
	})

	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	return mux
}

// handleLiveWS streams snapshots and accepts actions on the same socket.
func handleLiveWS(w http.ResponseWriter, r *http.Request, state *liveState, cmd commander) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	updates, stop := state.watch()
	defer stop()

	// gorilla allows one concurrent writer
	out := make(chan LiveMessage, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range out {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	}()
	defer func() {
		close(out)
		<-done
	}()
	send := func(msg LiveMessage) bool {
		select {
		case out <- msg:
			return true
		case <-done:
			return false
		}
	}

	quit := make(chan struct{})
	defer close(quit)
	actions := make(chan LiveAction)
	go func() {
		defer close(actions)
		for {
			var a LiveAction
			if err := conn.ReadJSON(&a); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("web: websocket error: %v", err)
				}
				return
			}
			select {
			case actions <- a:
			case <-quit:
				return
			}
		}
	}()

	if s, ok := state.current(); ok {
		if !send(LiveMessage{Type: "snapshot", Snapshot: &s}) {
			return
		}
	}

	for {
		var msg LiveMessage
		select {
		case s := <-updates:
			msg = LiveMessage{Type: "snapshot", Snapshot: &s}
		case a, ok := <-actions:
			if !ok {
				return
			}
			msg = LiveMessage{Type: "status", Message: a.Action + " requested"}
			if err := runAction(cmd, a.Action); err != nil {
				msg = LiveMessage{Type: "error", Message: err.Error()}
			}
		}
		if !send(msg) {
			return
		}
	}
}

// RunWeb serves the dashboard from the MQTT telemetry.
func RunWeb() error {
	cfg := config.Get()
	state := newLiveState()

	client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := telemetry.SubscribeJSON(client, cfg.TopicSnapshot, state.setSnapshot); err != nil {
		return err
	}
	if err := telemetry.Subscribe(client, cfg.TopicScreen, state.setScreen); err != nil {
		return err
	}
	for i := 0; i < head.NumSubs; i++ {
		if err := telemetry.SubscribeJSON(client, telemetry.SubTopic(cfg.TopicSubBase, i), state.setSub); err != nil {
			return err
		}
	}

	cmd := &mqttCommander{client: client, tare: cfg.TopicCmdTare, mode: cfg.TopicCmdMode}
	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: listening on %s", addr)
	return http.ListenAndServe(addr, newWebHandler(state, cmd, cfg.WebStaticDir))
}

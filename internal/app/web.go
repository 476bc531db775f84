// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/bikepath_logger/internal/config"
	"github.com/relabs-tech/bikepath_logger/internal/features"
	"github.com/relabs-tech/bikepath_logger/internal/sink"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// liveView keeps the latest record and status and fans records out to
// websocket clients.
type liveView struct {
	mu         sync.RWMutex
	lastRecord features.Record
	haveRecord bool
	lastStatus sink.Status
	haveStatus bool
	clients    map[chan features.Record]struct{}
}

func newLiveView() *liveView {
	return &liveView{clients: make(map[chan features.Record]struct{})}
}

func (v *liveView) onRecord(r features.Record) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastRecord = r
	v.haveRecord = true
	for ch := range v.clients {
		select {
		case ch <- r:
		default:
			// slow client, it will catch up with the next record
		}
	}
}

func (v *liveView) onStatus(s sink.Status) {
	v.mu.Lock()
	v.lastStatus = s
	v.haveStatus = true
	v.mu.Unlock()
}

func (v *liveView) subscribe() chan features.Record {
	ch := make(chan features.Record, 16)
	v.mu.Lock()
	v.clients[ch] = struct{}{}
	v.mu.Unlock()
	return ch
}

func (v *liveView) unsubscribe(ch chan features.Record) {
	v.mu.Lock()
	delete(v.clients, ch)
	v.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func (v *liveView) handleRecord(w http.ResponseWriter, r *http.Request) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.haveRecord {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, v.lastRecord)
}

func (v *liveView) handleStatus(w http.ResponseWriter, r *http.Request) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.haveStatus {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, v.lastStatus)
}

// handleLive streams every new record to the websocket client.
func (v *liveView) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := v.subscribe()
	defer v.unsubscribe(ch)

	// The reader only notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case rec := <-ch:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(rec); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	}
}

func (v *liveView) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/record", v.handleRecord)
	mux.HandleFunc("/api/status", v.handleStatus)
	mux.HandleFunc("/ws/records", v.handleLive)
	// Static files from ./web as the root
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

// RunWeb serves the latest record and status over HTTP and streams new
// records over a websocket, fed from MQTT.
func RunWeb(ctx context.Context, cfg *config.Config) error {
	view := newLiveView()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb, slog.Default())
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	token := client.Subscribe(cfg.TopicRecords, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var rec features.Record
		if err := json.Unmarshal(msg.Payload(), &rec); err != nil {
			log.Printf("MQTT payload unmarshal error: %v", err)
			return
		}
		view.onRecord(rec)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", cfg.TopicRecords, token.Error())
	}
	token = client.Subscribe(cfg.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s sink.Status
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("MQTT payload unmarshal error: %v", err)
			return
		}
		view.onStatus(s)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", cfg.TopicStatus, token.Error())
	}
	log.Printf("subscribed to MQTT topics %s, %s", cfg.TopicRecords, cfg.TopicStatus)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler: view.routes(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("web server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

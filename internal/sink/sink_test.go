// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/bikepath_logger/internal/features"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestDir_RecordsAndImages(t *testing.T) {
	root := t.TempDir()
	d, err := NewDir(root, 10, testLogger())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}

	path, err := d.SaveImage("1700000000000.jpg", []byte{0xff, 0xd8})
	if err != nil {
		t.Fatalf("SaveImage: %v", err)
	}
	if want := filepath.Join(root, "1", "1700000000000.jpg"); path != want {
		t.Errorf("expected image at %s, got %s", want, path)
	}
	if err := d.AppendRecord(features.Record{Sequence: 1, ImageFile: "1700000000000.jpg"}); err != nil {
		t.Fatalf("AppendRecord: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rows := readCSV(t, filepath.Join(root, "1", FeaturesFile))
	if len(rows) != 2 {
		t.Fatalf("expected header and 1 row, got %d rows", len(rows))
	}
	if rows[0][0] != "session_id" {
		t.Errorf("expected header row, got %v", rows[0])
	}
	col := -1
	for i, name := range rows[0] {
		if name == "image_file" {
			col = i
		}
	}
	if col < 0 || rows[1][col] != "1700000000000.jpg" {
		t.Errorf("expected image file column, got %v", rows[1])
	}

	if err := d.AppendRecord(features.Record{}); err == nil {
		t.Errorf("expected error after Close")
	}
}

func TestDir_Rotation(t *testing.T) {
	root := t.TempDir()
	d, err := NewDir(root, 2, testLogger())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	defer d.Close()

	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("%d.jpg", 1700000000000+i)
		if _, err := d.SaveImage(name, []byte{1}); err != nil {
			t.Fatalf("SaveImage %d: %v", i, err)
		}
		if err := d.AppendRecord(features.Record{Sequence: uint64(i + 1)}); err != nil {
			t.Fatalf("AppendRecord %d: %v", i, err)
		}
	}

	if want := filepath.Join(root, "3"); d.Folder() != want {
		t.Errorf("expected current folder %s, got %s", want, d.Folder())
	}
	for folder, rows := range map[string]int{"1": 3, "2": 3, "3": 2} {
		got := readCSV(t, filepath.Join(root, folder, FeaturesFile))
		if len(got) != rows {
			t.Errorf("folder %s: expected %d rows incl. header, got %d", folder, rows, len(got))
		}
	}
	if d.Rows() != 5 {
		t.Errorf("expected 5 rows, got %d", d.Rows())
	}
}

func TestDir_ContinuesNumbering(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"1", "7", "notes"} {
		if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	d, err := NewDir(root, 0, testLogger())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	defer d.Close()

	if want := filepath.Join(root, "8"); d.Folder() != want {
		t.Errorf("expected %s, got %s", want, d.Folder())
	}
}

type recordingSink struct {
	mu      sync.Mutex
	records []features.Record
	err     error
	delay   time.Duration
}

func (s *recordingSink) AppendRecord(r features.Record) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, r)
	return nil
}

func (s *recordingSink) sequences() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, len(s.records))
	for i, r := range s.records {
		out[i] = r.Sequence
	}
	return out
}

func TestMulti(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{err: errors.New("broker down")}
	c := &recordingSink{}

	err := Multi{a, b, c}.AppendRecord(features.Record{Sequence: 9})
	if err == nil || err.Error() != "broker down" {
		t.Errorf("expected joined error, got %v", err)
	}
	if len(a.records) != 1 || len(c.records) != 1 {
		t.Errorf("expected healthy sinks to receive the record")
	}
}

func TestTee_FullQueueKeepsRecordPersisted(t *testing.T) {
	root := t.TempDir()
	d, err := NewDir(root, 10, testLogger())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	defer d.Close()

	// The writer is never started, so the queue fills after one record.
	remote := &recordingSink{}
	tee := NewTee(d, NewAsync(remote, 1, testLogger()), testLogger())

	for i := 1; i <= 5; i++ {
		if err := tee.AppendRecord(features.Record{Sequence: uint64(i)}); err != nil {
			t.Fatalf("record %d: expected nil with a full mirror queue, got %v", i, err)
		}
	}
	if d.Rows() != 5 {
		t.Errorf("expected 5 rows on disk, got %d", d.Rows())
	}
	if tee.MirrorFailed() != 4 {
		t.Errorf("expected 4 records refused by the mirror, got %d", tee.MirrorFailed())
	}
}

func TestTee_PrimaryFailure(t *testing.T) {
	primary := &recordingSink{err: errors.New("disk full")}
	mirror := &recordingSink{}
	tee := NewTee(primary, mirror, testLogger())

	if err := tee.AppendRecord(features.Record{Sequence: 1}); err == nil || err.Error() != "disk full" {
		t.Errorf("expected primary error, got %v", err)
	}
	if len(mirror.records) != 0 {
		t.Errorf("mirror must not receive a record the primary refused")
	}
}

func TestAsync_OrderAndDrain(t *testing.T) {
	next := &recordingSink{delay: time.Millisecond}
	a := NewAsync(next, 100, testLogger())

	for i := 1; i <= 20; i++ {
		if err := a.AppendRecord(features.Record{Sequence: uint64(i)}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := next.sequences()
	if len(got) != 20 {
		t.Fatalf("expected all 20 accepted records drained, got %d", len(got))
	}
	for i, seq := range got {
		if seq != uint64(i+1) {
			t.Fatalf("records out of order: %v", got)
		}
	}
	if a.Written() != 20 {
		t.Errorf("expected 20 written, got %d", a.Written())
	}
}

func TestAsync_QueueFull(t *testing.T) {
	a := NewAsync(&recordingSink{}, 2, testLogger())
	for i := 0; i < 2; i++ {
		if err := a.AppendRecord(features.Record{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := a.AppendRecord(features.Record{}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

// fakeToken completes immediately.
type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient records publishes; other methods are not used.
type fakeClient struct {
	mqtt.Client
	msgs []published
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.msgs = append(c.msgs, published{topic, qos, retained, payload.([]byte)})
	return &fakeToken{}
}

func TestMQTT(t *testing.T) {
	client := &fakeClient{}
	m := NewMQTT(client, "bikepath/records", "bikepath/status")

	if err := m.AppendRecord(features.Record{SessionID: "s", Sequence: 3, SpeedKmh: 20}); err != nil {
		t.Fatalf("AppendRecord: %v", err)
	}
	if err := m.PublishStatus(Status{SessionID: "s", State: "preview"}); err != nil {
		t.Fatalf("PublishStatus: %v", err)
	}

	if len(client.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(client.msgs))
	}
	rec := client.msgs[0]
	if rec.topic != "bikepath/records" || rec.qos != 1 || rec.retained {
		t.Errorf("unexpected record publish %+v", rec)
	}
	var decoded map[string]any
	if err := json.Unmarshal(rec.payload, &decoded); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if decoded["sequence"] != float64(3) || decoded["speed_kmh"] != float64(20) {
		t.Errorf("unexpected payload %s", rec.payload)
	}
	if st := client.msgs[1]; st.topic != "bikepath/status" || !st.retained {
		t.Errorf("expected retained status, got %+v", st)
	}
}

func TestRecordArgsMatchColumns(t *testing.T) {
	args := recordArgs(features.Record{})
	if placeholders := strings.Count(insertRecord, "?"); len(args) != placeholders {
		t.Errorf("expected %d insert arguments, got %d", placeholders, len(args))
	}
	if got := len(args); got != 37 {
		t.Errorf("expected 37 insert arguments, got %d", got)
	}
	if series, ok := args[len(args)-1].([]int64); !ok || series == nil {
		t.Errorf("expected an empty offsets array, got %#v", args[len(args)-1])
	}
}

package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// parcelAPIStub 最小化的服务端桩：快照、推送流与取消接口
type parcelAPIStub struct {
	mu           sync.Mutex
	records      map[uint]Record
	snapshotLag  time.Duration
	streamEvents []string
	cancelCode   int
	cancelMsg    string
}

func newParcelAPIStub() *parcelAPIStub {
	return &parcelAPIStub{
		records: map[uint]Record{
			42: {ID: 42, TrackingNo: "PN20260101000000AAAAAA", Status: "Pending", PickupLocation: "Nairobi CBD", Destination: "Mombasa"},
			43: {ID: 43, TrackingNo: "PN20260101000000BBBBBB", Status: "In Transit", PickupLocation: "Kisumu", Destination: "Nakuru"},
		},
		cancelMsg: "Parcel order has been cancelled",
	}
}

func (s *parcelAPIStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/stream"):
			s.serveStream(t, w, r)
		case strings.HasSuffix(path, "/cancel"):
			s.serveCancel(w, r)
		default:
			s.serveSnapshot(w, r)
		}
	}))
}

func (s *parcelAPIStub) parcelFromPath(path string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, record := range s.records {
		if strings.Contains(path, fmt.Sprintf("/parcels/%d", id)) {
			return record, true
		}
	}
	return Record{}, false
}

func (s *parcelAPIStub) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshotLag > 0 {
		time.Sleep(s.snapshotLag)
	}
	record, ok := s.parcelFromPath(r.URL.Path)
	if !ok {
		writeEnvelope(w, 404, "Parcel not found", nil)
		return
	}
	writeEnvelope(w, 0, "success", record)
}

func (s *parcelAPIStub) serveCancel(w http.ResponseWriter, r *http.Request) {
	record, ok := s.parcelFromPath(r.URL.Path)
	if !ok {
		writeEnvelope(w, 404, "Parcel not found", nil)
		return
	}
	s.mu.Lock()
	code, msg := s.cancelCode, s.cancelMsg
	s.mu.Unlock()
	if code != 0 {
		writeEnvelope(w, code, msg, nil)
		return
	}
	record.Status = "Cancelled"
	s.mu.Lock()
	s.records[record.ID] = record
	s.mu.Unlock()
	writeEnvelope(w, 0, msg, record)
}

func (s *parcelAPIStub) serveStream(t *testing.T, w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("jwt") == "" {
		writeEnvelope(w, 401, "Authorization token required", nil)
		return
	}
	flusher := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	s.mu.Lock()
	events := append([]string(nil), s.streamEvents...)
	s.mu.Unlock()
	for _, event := range events {
		fmt.Fprint(w, event)
		flusher.Flush()
	}
	<-r.Context().Done()
}

func writeEnvelope(w http.ResponseWriter, code int, msg string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status_code": code,
		"msg":         msg,
		"data":        data,
	})
}

func newTestSession(t *testing.T, srv *httptest.Server, confirm Confirmer) *Session {
	t.Helper()
	client, err := NewClient(srv.URL, StaticToken("test-token"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	session, err := NewSession(SessionOptions{
		Client:    client,
		Tokens:    StaticToken("test-token"),
		Confirmer: confirm,
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(session.Close)
	return session
}

func waitForView(t *testing.T, session *Session, describe string, ok func(SessionView) bool) SessionView {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		view := session.View()
		if ok(view) {
			return view
		}
		select {
		case <-session.Updates():
		case <-deadline:
			t.Fatalf("timed out waiting for %s; last view: %+v", describe, view)
		}
	}
}

func TestSessionSnapshotThenDelta(t *testing.T) {
	stub := newParcelAPIStub()
	stub.streamEvents = []string{
		"event: message\ndata: {\"status\":\"In Transit\",\"present_location\":\"Voi\"}\n\n",
	}
	srv := stub.server(t)
	t.Cleanup(srv.Close)

	session := newTestSession(t, srv, nil)
	session.Track(context.Background(), 42)

	view := waitForView(t, session, "merged delta", func(v SessionView) bool {
		return v.State == StateReady && v.Record != nil && v.Record.Status == "In Transit"
	})
	if view.Record.PresentLocation != "Voi" {
		t.Fatalf("delta field missing: %+v", view.Record)
	}
	if view.Record.PickupLocation != "Nairobi CBD" {
		t.Fatalf("snapshot field lost: %+v", view.Record)
	}
	if !view.ViewModel.IsActionable {
		t.Fatalf("In Transit parcel should be actionable")
	}
}

func TestSessionBuffersPreSnapshotDeltas(t *testing.T) {
	stub := newParcelAPIStub()
	stub.snapshotLag = 300 * time.Millisecond
	stub.streamEvents = []string{
		"event: message\ndata: {\"status\":\"In Transit\"}\n\n",
		"event: message\ndata: {\"present_location\":\"Kericho\"}\n\n",
	}
	srv := stub.server(t)
	t.Cleanup(srv.Close)

	session := newTestSession(t, srv, nil)
	session.Track(context.Background(), 42)

	view := waitForView(t, session, "buffered deltas folded on snapshot", func(v SessionView) bool {
		return v.State == StateReady && v.Record != nil &&
			v.Record.Status == "In Transit" && v.Record.PresentLocation == "Kericho"
	})
	if view.Record.Destination != "Mombasa" {
		t.Fatalf("snapshot fields must survive buffered replay: %+v", view.Record)
	}
}

func TestSessionSnapshotFailure(t *testing.T) {
	stub := newParcelAPIStub()
	srv := stub.server(t)
	t.Cleanup(srv.Close)

	session := newTestSession(t, srv, nil)
	session.Track(context.Background(), 999)

	view := waitForView(t, session, "failed state", func(v SessionView) bool {
		return v.State == StateFailed
	})
	if view.FailReason != "Parcel not found" {
		t.Fatalf("expected server reason, got %q", view.FailReason)
	}
	if view.Record != nil {
		t.Fatalf("failed session must not carry a record")
	}
}

func TestSessionFailedSnapshotDropsStreamDeltas(t *testing.T) {
	stub := newParcelAPIStub()
	srv := stub.server(t)
	t.Cleanup(srv.Close)

	session := newTestSession(t, srv, nil)
	session.Track(context.Background(), 999)
	waitForView(t, session, "failed state", func(v SessionView) bool {
		return v.State == StateFailed
	})

	session.mu.Lock()
	gen := session.generation
	session.mu.Unlock()

	// 快照失败后增量没有折叠时机，不得在缓冲区里无限堆积
	for i := 0; i < 100; i++ {
		session.applyDelta(gen, Delta{PresentLocation: strPtr(fmt.Sprintf("stop-%d", i))})
	}

	session.mu.Lock()
	pendingLen := len(session.pending)
	sub := session.subscriber
	connected := session.streamConnected
	session.mu.Unlock()

	if pendingLen != 0 {
		t.Fatalf("deltas buffered after snapshot failure: %d", pendingLen)
	}
	if sub != nil || connected {
		t.Fatalf("stream must be torn down after snapshot failure (sub=%v connected=%v)", sub != nil, connected)
	}
}

func TestSessionIsolationAcrossTrackSwitch(t *testing.T) {
	stub := newParcelAPIStub()
	srv := stub.server(t)
	t.Cleanup(srv.Close)

	session := newTestSession(t, srv, nil)
	session.Track(context.Background(), 42)
	waitForView(t, session, "first parcel ready", func(v SessionView) bool {
		return v.State == StateReady && v.ParcelID == 42
	})
	staleGen := session.generation

	session.Track(context.Background(), 43)
	waitForView(t, session, "second parcel ready", func(v SessionView) bool {
		return v.State == StateReady && v.ParcelID == 43
	})

	// 旧连接的残留增量不得污染新会话
	stale := "Delivered"
	session.applyDelta(staleGen, Delta{Status: &stale})

	view := session.View()
	if view.Record.Status != "In Transit" {
		t.Fatalf("stale delta leaked into new session: %+v", view.Record)
	}
	if view.Record.ID != 43 {
		t.Fatalf("wrong record after switch: %+v", view.Record)
	}
}

func TestSessionCancelDeclined(t *testing.T) {
	stub := newParcelAPIStub()
	srv := stub.server(t)
	t.Cleanup(srv.Close)

	declined := ConfirmerFunc(func(string) bool { return false })
	session := newTestSession(t, srv, declined)
	session.Track(context.Background(), 42)
	waitForView(t, session, "ready", func(v SessionView) bool { return v.State == StateReady })

	session.CancelTracked(context.Background())

	view := session.View()
	if view.Record.Status != "Pending" {
		t.Fatalf("declined confirmation must leave status unchanged, got %q", view.Record.Status)
	}
	if view.CancelState != CancelIdle {
		t.Fatalf("cancel state should return to idle, got %q", view.CancelState)
	}
}

func TestSessionCancelSuccess(t *testing.T) {
	stub := newParcelAPIStub()
	srv := stub.server(t)
	t.Cleanup(srv.Close)

	accepted := ConfirmerFunc(func(string) bool { return true })
	session := newTestSession(t, srv, accepted)
	session.Track(context.Background(), 42)
	waitForView(t, session, "ready", func(v SessionView) bool { return v.State == StateReady })

	session.CancelTracked(context.Background())

	view := session.View()
	if view.Record.Status != "Cancelled" {
		t.Fatalf("expected cancelled record, got %q", view.Record.Status)
	}
	if view.ViewModel.IsActionable {
		t.Fatalf("cancelled parcel must not be actionable")
	}
	notice := session.TakeNotice()
	if notice == nil || notice.Level != "info" || notice.Message != "Parcel order has been cancelled" {
		t.Fatalf("unexpected notice: %+v", notice)
	}
	if session.TakeNotice() != nil {
		t.Fatalf("notice must be one-shot")
	}
}

func TestSessionCancelFailureLeavesRecordUntouched(t *testing.T) {
	stub := newParcelAPIStub()
	stub.cancelCode = 400
	stub.cancelMsg = "Cannot cancel a delivered parcel"
	srv := stub.server(t)
	t.Cleanup(srv.Close)

	accepted := ConfirmerFunc(func(string) bool { return true })
	session := newTestSession(t, srv, accepted)
	session.Track(context.Background(), 42)
	waitForView(t, session, "ready", func(v SessionView) bool { return v.State == StateReady })

	session.CancelTracked(context.Background())

	view := session.View()
	if view.Record.Status != "Pending" {
		t.Fatalf("failed cancellation must leave record unchanged, got %q", view.Record.Status)
	}
	if view.CancelState != CancelIdle {
		t.Fatalf("cancel workflow should settle back to idle, got %q", view.CancelState)
	}
	notice := session.TakeNotice()
	if notice == nil || notice.Level != "error" || notice.Message != "Cannot cancel a delivered parcel" {
		t.Fatalf("expected server-supplied failure reason, got %+v", notice)
	}
}

func TestSessionCancelRequiresReadyState(t *testing.T) {
	stub := newParcelAPIStub()
	srv := stub.server(t)
	t.Cleanup(srv.Close)

	called := false
	confirm := ConfirmerFunc(func(string) bool {
		called = true
		return true
	})
	session := newTestSession(t, srv, confirm)

	// 未加载任何包裹时取消流程不启动
	session.CancelTracked(context.Background())
	if called {
		t.Fatalf("confirmer must not fire before a snapshot is ready")
	}
}

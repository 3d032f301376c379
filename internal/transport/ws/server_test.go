package ws

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/yesC48/CyberIO/internal/protocol"
	"github.com/yesC48/CyberIO/internal/sim/world"
)

// fakeWorld answers every submitted command with OK on the next "tick".
type fakeWorld struct {
	busy   bool
	silent bool
	got    chan world.CommandRequest
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{got: make(chan world.CommandRequest, 16)}
}

func (f *fakeWorld) CurrentTick() uint64 { return 42 }

func (f *fakeWorld) Submit(req world.CommandRequest) bool {
	if f.busy {
		return false
	}
	f.got <- req
	if !f.silent {
		req.Resp <- protocol.CommandResultMsg{
			Type:            protocol.TypeCommandResult,
			ProtocolVersion: protocol.Version,
			CommandID:       req.Cmd.CommandID,
			Tick:            42,
			OK:              true,
		}
	}
	return true
}

const placeJSON = `{"type":"COMMAND","protocol_version":"1.0","command_id":"c1","op":"PLACE","block":"DATA_NODE","at":[1,1]}`

func post(t *testing.T, h http.Handler, body string, remote string) (*httptest.ResponseRecorder, protocol.CommandResultMsg) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/admin/v1/command", strings.NewReader(body))
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var res protocol.CommandResultMsg
	if rec.Code != http.StatusForbidden && rec.Code != http.StatusMethodNotAllowed {
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode result: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, res
}

func TestCommandHandler_ForwardsToWorld(t *testing.T) {
	fw := newFakeWorld()
	h := NewServer(fw, nil).CommandHandler()

	rec, res := post(t, h, placeJSON, "127.0.0.1:5000")
	if rec.Code != http.StatusOK || !res.OK || res.CommandID != "c1" {
		t.Fatalf("status=%d res=%+v", rec.Code, res)
	}
	req := <-fw.got
	if req.Actor != "admin" || req.Cmd.Op != protocol.OpPlace || req.Cmd.Block != "DATA_NODE" {
		t.Fatalf("submitted = %+v", req)
	}
}

func TestCommandHandler_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		busy   bool
		status int
		code   string
	}{
		{"bad json", `{`, false, http.StatusBadRequest, protocol.ErrProtoBadRequest},
		{"wrong type", `{"type":"HELLO","protocol_version":"1.0"}`, false, http.StatusBadRequest, protocol.ErrProtoBadRequest},
		{"bad version", `{"type":"COMMAND","protocol_version":"0.1","op":"PLACE","at":[0,0]}`, false, http.StatusBadRequest, protocol.ErrProtoBadRequest},
		{"unknown op", `{"type":"COMMAND","protocol_version":"1.0","op":"FLY","at":[0,0]}`, false, http.StatusOK, protocol.ErrBadRequest},
		{"busy", placeJSON, true, http.StatusServiceUnavailable, protocol.ErrWorldBusy},
	}
	for _, tc := range cases {
		fw := newFakeWorld()
		fw.busy = tc.busy
		rec, res := post(t, NewServer(fw, nil).CommandHandler(), tc.body, "127.0.0.1:5000")
		if rec.Code != tc.status || res.OK || res.Code != tc.code {
			t.Fatalf("%s: status=%d res=%+v", tc.name, rec.Code, res)
		}
		if res.Tick != 42 {
			t.Fatalf("%s: tick=%d", tc.name, res.Tick)
		}
	}
}

func TestCommandHandler_TimesOutWithoutTick(t *testing.T) {
	fw := newFakeWorld()
	fw.silent = true
	s := NewServer(fw, nil)
	s.SetResultTimeout(20 * time.Millisecond)
	rec, res := post(t, s.CommandHandler(), placeJSON, "127.0.0.1:5000")
	// Queued but unanswered is not "busy": a retry could apply it twice.
	if res.Code != protocol.ErrResultUnknown || rec.Code != http.StatusAccepted {
		t.Fatalf("status=%d res=%+v", rec.Code, res)
	}
	if len(fw.got) != 1 {
		t.Fatalf("command was not queued")
	}
}

func TestCommandHandler_LoopbackOnly(t *testing.T) {
	h := NewServer(newFakeWorld(), nil).CommandHandler()
	if rec, _ := post(t, h, placeJSON, "10.1.2.3:5000"); rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/admin/v1/command", nil)
	req.RemoteAddr = "127.0.0.1:1"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status=%d", rec.Code)
	}
}

func TestCommandHandler_SchemaValidation(t *testing.T) {
	schema, err := jsonschema.Compile(filepath.Join("..", "..", "..", "schemas", "command.schema.json"))
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	s := NewServer(newFakeWorld(), nil)
	s.SetValidator(schema)

	if _, res := post(t, s.CommandHandler(), placeJSON, "127.0.0.1:5000"); !res.OK {
		t.Fatalf("valid command rejected: %+v", res)
	}
	bad := `{"type":"COMMAND","protocol_version":"1.0","op":"PLACE","at":"here"}`
	if _, res := post(t, s.CommandHandler(), bad, "127.0.0.1:5000"); res.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("invalid command accepted: %+v", res)
	}
}

func TestHandler_CommandStream(t *testing.T) {
	fw := newFakeWorld()
	srv := httptest.NewServer(NewServer(fw, nil).Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for i, body := range []string{placeJSON, `{"type":"COMMAND","protocol_version":"1.0","op":"NOPE","at":[0,0]}`} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(body)); err != nil {
			t.Fatalf("write: %v", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var res protocol.CommandResultMsg
		if err := json.NewDecoder(bytes.NewReader(msg)).Decode(&res); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if i == 0 && !res.OK {
			t.Fatalf("first result = %+v", res)
		}
		if i == 1 && res.Code != protocol.ErrBadRequest {
			t.Fatalf("second result = %+v", res)
		}
	}
	req := <-fw.got
	if !strings.HasPrefix(req.Actor, "operator:") {
		t.Fatalf("actor = %q", req.Actor)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:80": true,
		"[::1]:443":    true,
		"::1":          true,
		"10.0.0.1:80":  false,
		"garbage":      false,
	}
	for in, want := range cases {
		if got := IsLoopbackRemote(in); got != want {
			t.Fatalf("IsLoopbackRemote(%q)=%v want %v", in, got, want)
		}
	}
}

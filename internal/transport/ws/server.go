package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yesC48/CyberIO/internal/protocol"
	"github.com/yesC48/CyberIO/internal/sim/world"
)

// World is the part of the simulation the command surfaces talk to.
type World interface {
	Submit(req world.CommandRequest) bool
	CurrentTick() uint64
}

// Validator checks a decoded COMMAND document. *jsonschema.Schema satisfies it.
type Validator interface {
	Validate(v interface{}) error
}

// Server accepts operator commands over a websocket stream and a one-shot
// HTTP endpoint. Both forward into the world loop and wait for the result
// of the tick that applied the command.
type Server struct {
	world World
	log   *log.Logger

	validator Validator
	timeout   time.Duration

	upgrader websocket.Upgrader
}

func NewServer(w World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		world:   w,
		log:     logger,
		timeout: 5 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only
		},
	}
	return s
}

func (s *Server) SetValidator(v Validator)          { s.validator = v }
func (s *Server) SetResultTimeout(d time.Duration) { s.timeout = d }

// CommandHandler serves POST /admin/v1/command.
func (s *Server) CommandHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
		if err != nil {
			http.Error(rw, "read body", http.StatusBadRequest)
			return
		}
		actor := strings.TrimSpace(r.Header.Get("X-Actor"))
		if actor == "" {
			actor = "admin"
		}
		res := s.execute(r.Context(), actor, body)

		status := http.StatusOK
		switch res.Code {
		case protocol.ErrProtoBadRequest:
			status = http.StatusBadRequest
		case protocol.ErrWorldBusy:
			status = http.StatusServiceUnavailable
		case protocol.ErrResultUnknown:
			status = http.StatusAccepted
		}
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(status)
		_ = json.NewEncoder(rw).Encode(res)
	}
}

// Handler serves the operator websocket. Every text message is one COMMAND;
// each gets exactly one COMMAND_RESULT back, in order.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		actor := "operator:" + uuid.NewString()
		s.log.Printf("operator connected: %s", actor)
		defer s.log.Printf("operator disconnected: %s", actor)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			res := s.execute(ctx, actor, msg)
			if err := writeJSON(conn, res); err != nil {
				break
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	}
}

func (s *Server) execute(ctx context.Context, actor string, msg []byte) protocol.CommandResultMsg {
	cmd, code, why := s.decode(msg)
	if code != "" {
		return s.reject(cmd.CommandID, code, why)
	}

	resp := make(chan protocol.CommandResultMsg, 1)
	if !s.world.Submit(world.CommandRequest{Actor: actor, Cmd: cmd, Resp: resp}) {
		return s.reject(cmd.CommandID, protocol.ErrWorldBusy, "command queue full")
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case res := <-resp:
		return res
	case <-timer.C:
		return s.reject(cmd.CommandID, protocol.ErrResultUnknown, "queued, result unknown")
	case <-ctx.Done():
		return s.reject(cmd.CommandID, protocol.ErrResultUnknown, "request cancelled after queueing")
	}
}

func (s *Server) decode(msg []byte) (cmd protocol.CommandMsg, code, why string) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return cmd, protocol.ErrProtoBadRequest, "bad json"
	}
	if base.Type != protocol.TypeCommand {
		return cmd, protocol.ErrProtoBadRequest, "expected COMMAND"
	}
	if base.ProtocolVersion != protocol.Version {
		return cmd, protocol.ErrProtoBadRequest, "bad protocol_version"
	}
	if s.validator != nil {
		var doc any
		if err := json.Unmarshal(msg, &doc); err != nil {
			return cmd, protocol.ErrProtoBadRequest, "bad json"
		}
		if err := s.validator.Validate(doc); err != nil {
			return cmd, protocol.ErrProtoBadRequest, err.Error()
		}
	}
	if err := json.Unmarshal(msg, &cmd); err != nil {
		return cmd, protocol.ErrProtoBadRequest, "bad command"
	}
	if !protocol.IsKnownOp(cmd.Op) {
		return cmd, protocol.ErrBadRequest, "unknown op"
	}
	return cmd, "", ""
}

func (s *Server) reject(ref, code, message string) protocol.CommandResultMsg {
	return protocol.CommandResultMsg{
		Type:            protocol.TypeCommandResult,
		ProtocolVersion: protocol.Version,
		CommandID:       ref,
		Tick:            s.world.CurrentTick(),
		Code:            code,
		Message:         message,
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

// IsLoopbackRemote reports whether an http.Request.RemoteAddr is a loopback
// address.
func IsLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

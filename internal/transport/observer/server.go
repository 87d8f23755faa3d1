package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"outbreak.sim/internal/observerproto"
	"outbreak.sim/internal/sim/render"
	"outbreak.sim/internal/sim/world"
)

const controlTimeout = 2 * time.Second

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		info := s.world.RunInfo()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         info.WorldID,
			RunID:           info.RunID,
			Tick:            s.world.CurrentTick(),
			Running:         s.world.Running(),
			WorldParams: observerproto.WorldParams{
				TickRateHz:    info.TickRateHz,
				Width:         info.Width,
				Height:        info.Height,
				MapSeed:       info.MapSeed,
				Seed:          info.Seed,
				Deterministic: info.Deterministic,
			},
			Palette:     render.DefaultPalette(),
			StateColors: world.StateColors(),
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// envelope peeks at the message type before decoding the full message.
type envelope struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}
		normalizeSubscribe(&sub)

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		frameOut := make(chan []byte, 8)
		ackOut := make(chan []byte, 16)

		joinReq := world.ObserverJoinRequest{
			SessionID:  sid,
			FrameOut:   frameOut,
			MaxDepth:   sub.MaxDepth,
			OmitAgents: sub.OmitAgents,
		}
		select {
		case s.world.ObserverJoin() <- joinReq:
		default:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		defer func() {
			select {
			case s.world.ObserverLeave() <- sid:
			default:
				// World loop is stopping; nothing else to do.
			}
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine. Acks and frames share the one connection writer.
		writeErr := make(chan error, 1)
		go func() {
			write := func(b []byte) error {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				return conn.WriteMessage(websocket.TextMessage, b)
			}
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-ackOut:
					if err := write(b); err != nil {
						writeErr <- err
						return
					}
				case b, ok := <-frameOut:
					if !ok {
						writeErr <- nil
						return
					}
					if err := write(b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: SUBSCRIBE updates and CONTROL ops.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var env envelope
			if err := json.Unmarshal(msg, &env); err != nil || env.ProtocolVersion != observerproto.Version {
				continue
			}
			switch env.Type {
			case "SUBSCRIBE":
				var sub observerproto.SubscribeMsg
				if err := json.Unmarshal(msg, &sub); err != nil {
					continue
				}
				normalizeSubscribe(&sub)
				req := world.ObserverSubscribeRequest{
					SessionID:  sid,
					MaxDepth:   sub.MaxDepth,
					OmitAgents: sub.OmitAgents,
				}
				select {
				case s.world.ObserverSubscribe() <- req:
				default:
					// Drop updates under load; the client may resend.
				}
			case "CONTROL":
				var ctl observerproto.ControlMsg
				if err := json.Unmarshal(msg, &ctl); err != nil {
					continue
				}
				ack := s.handleControl(ctx, sid, ctl)
				b, err := json.Marshal(ack)
				if err != nil {
					continue
				}
				select {
				case ackOut <- b:
				default:
				}
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) handleControl(ctx context.Context, sid string, ctl observerproto.ControlMsg) observerproto.ControlAckMsg {
	ack := observerproto.ControlAckMsg{
		Type:            "CONTROL_ACK",
		ProtocolVersion: observerproto.Version,
		Op:              ctl.Op,
		OK:              true,
	}
	ctx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()

	switch ctl.Op {
	case observerproto.OpStart:
		s.world.SetRunning(true)
	case observerproto.OpPause:
		s.world.SetRunning(false)
	case observerproto.OpStep:
		if _, _, err := s.world.RequestStep(ctx); err != nil {
			ack.OK, ack.Error = false, err.Error()
		}
	case observerproto.OpReset:
		runID, err := s.world.RequestReset(ctx, ctl.MapSeed)
		if err != nil {
			ack.OK, ack.Error = false, err.Error()
		} else if s.log != nil {
			s.log.Printf("observer %s reset run=%s map_seed=%q", sid, runID, ctl.MapSeed)
		}
	default:
		ack.OK, ack.Error = false, "unknown op"
	}
	ack.Tick = s.world.CurrentTick()
	return ack
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.MaxDepth < 0 {
		sub.MaxDepth = 0
	}
	if sub.MaxDepth > 64 {
		sub.MaxDepth = 64
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

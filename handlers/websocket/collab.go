package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"signpad-server/core"
	"signpad-server/widget"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/engine.io/v2/utils"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// PadRegistry resolves pad ids to their live widgets.
type PadRegistry interface {
	Get(ctx context.Context, id string) (*widget.Widget, error)
	TouchPad(ctx context.Context, id string) error
}

// padState is what every client in a pad receives after a settings change
// or a clear.
type padState struct {
	ID      string                    `json:"id"`
	Config  core.DrawingConfiguration `json:"config"`
	Preview string                    `json:"preview,omitempty"`
	Strokes []core.Stroke             `json:"strokes"`
}

var (
	activePads = make(map[string]int)
	padsMutex  sync.RWMutex
)

func GetActivePads() map[string]int {
	padsMutex.RLock()
	defer padsMutex.RUnlock()

	pads := make(map[string]int, len(activePads))
	for k, v := range activePads {
		pads[k] = v
	}
	return pads
}

func setActivePad(padID string, users int) {
	padsMutex.Lock()
	defer padsMutex.Unlock()
	if users <= 0 {
		delete(activePads, padID)
		return
	}
	activePads[padID] = users
}

func stateOf(padID string, w *widget.Widget) padState {
	strokes := w.Strokes()
	if strokes == nil {
		strokes = []core.Stroke{}
	}
	return padState{
		ID:      padID,
		Config:  w.Config(),
		Preview: w.Preview(),
		Strokes: strokes,
	}
}

// Broadcaster pushes pad changes made outside a socket to every client in
// the pad's room.
type Broadcaster struct {
	srv *socketio.Server
}

func NewBroadcaster(srv *socketio.Server) *Broadcaster {
	return &Broadcaster{srv: srv}
}

// StateChanged sends the full pad state as "pad-state".
func (b *Broadcaster) StateChanged(padID string, w *widget.Widget) {
	if err := b.srv.In(socketio.Room(padID)).Emit("pad-state", stateOf(padID, w)); err != nil {
		logrus.WithFields(logrus.Fields{"error": err, "padId": padID}).Warn("Failed to broadcast pad state")
	}
}

// StrokeAdded relays a captured stroke as "client-stroke".
func (b *Broadcaster) StrokeAdded(padID string, stroke core.Stroke) {
	if err := b.srv.In(socketio.Room(padID)).Emit("client-stroke", stroke); err != nil {
		logrus.WithFields(logrus.Fields{"error": err, "padId": padID}).Warn("Failed to broadcast stroke")
	}
}

func SetupSocketIO(registry PadRegistry) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	localhostOrigin := regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)
	opts.SetCors(&types.Cors{
		Origin: []any{
			"tauri://localhost",
			localhostOrigin,
		},
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)
	broadcaster := NewBroadcaster(srv)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}

		me := socket.Id()
		utils.Log().Printf("client %v connected\n", me)

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("join-pad", func(datas ...any) {
			padID, _, ack := parsePadArgs(datas)
			w, err := resolvePad(registry, padID)
			if err != nil {
				respondWithAck(socket, ack, "join-pad-ack", makeAckPayload(nil, err), err)
				return
			}

			room := socketio.Room(padID)
			socket.Join(room)
			utils.Log().Printf("Socket %v has joined pad %v\n", me, room)

			srv.In(room).FetchSockets()(func(users []*socketio.RemoteSocket, fetchErr error) {
				if fetchErr != nil {
					respondWithAck(socket, ack, "join-pad-ack", makeAckPayload(nil, fetchErr), fetchErr)
					return
				}

				setActivePad(padID, len(users))
				if len(users) > 1 {
					_ = socket.Broadcast().To(room).Emit("new-user", me)
				}

				payload := makeAckPayload(nil, nil)
				payload["user_count"] = len(users)
				payload["state"] = stateOf(padID, w)
				respondWithAck(socket, ack, "join-pad-ack", payload, nil)
			})
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("stroke", func(datas ...any) {
			handleStroke(registry, socket, datas)
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("set-pen-color", func(datas ...any) {
			handleSetting(broadcaster, registry, socket, datas, func(w *widget.Widget, args []any) error {
				c, err := stringArg(args)
				if err != nil {
					return err
				}
				return w.SetPenColor(c)
			})
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("set-line-width", func(datas ...any) {
			handleSetting(broadcaster, registry, socket, datas, func(w *widget.Widget, args []any) error {
				width, err := intArg(args)
				if err != nil {
					return err
				}
				return w.SetLineWidth(width)
			})
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("set-background-color", func(datas ...any) {
			handleSetting(broadcaster, registry, socket, datas, func(w *widget.Widget, args []any) error {
				c, err := stringArg(args)
				if err != nil {
					return err
				}
				return w.SetBackgroundColor(c)
			})
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("clear", func(datas ...any) {
			handleSetting(broadcaster, registry, socket, datas, func(w *widget.Widget, _ []any) error {
				w.Clear()
				return nil
			})
		})

		socket.On("disconnecting", func(datas ...any) {
			for _, currentRoom := range socket.Rooms().Keys() {
				padID := string(currentRoom)
				if currentRoom == socketio.Room(me) {
					continue
				}
				srv.In(currentRoom).FetchSockets()(func(users []*socketio.RemoteSocket, _ error) {
					utils.Log().Printf("disconnecting %v from pad %v\n", me, currentRoom)

					others := 0
					for _, userInRoom := range users {
						if userInRoom.Id() != me {
							others++
						}
					}
					setActivePad(padID, others)
				})
			}
		})

		socket.On("disconnect", func(datas ...any) {
			socket.RemoveAllListeners("")
			socket.Disconnect(true)
		})
	})

	return srv
}

func resolvePad(registry PadRegistry, padID string) (*widget.Widget, error) {
	if padID == "" {
		return nil, fmt.Errorf("pad id is required")
	}
	ctx := context.Background()
	w, err := registry.Get(ctx, padID)
	if err != nil {
		return nil, err
	}
	if err := registry.TouchPad(ctx, padID); err != nil {
		logrus.WithFields(logrus.Fields{"error": err, "padId": padID}).Warn("Failed to record pad activity")
	}
	return w, nil
}

// handleStroke draws a stroke sent as (padId, points[, ack]) and relays the
// captured stroke to the other clients in the pad.
func handleStroke(registry PadRegistry, socket *socketio.Socket, datas []any) {
	padID, args, ack := parsePadArgs(datas)
	var original any
	if len(args) > 0 {
		original = args[0]
	}

	w, err := resolvePad(registry, padID)
	if err != nil {
		respondWithAck(socket, ack, "stroke-ack", makeAckPayload(original, err), err)
		return
	}

	points, err := decodePoints(args)
	if err != nil {
		respondWithAck(socket, ack, "stroke-ack", makeAckPayload(original, err), err)
		return
	}

	stroke, err := w.AddStroke(points)
	if err != nil {
		respondWithAck(socket, ack, "stroke-ack", makeAckPayload(original, err), err)
		return
	}

	utils.Log().Printf(" user %v draws on pad %v\n", socket.Id(), padID)
	if emitErr := socket.Broadcast().To(socketio.Room(padID)).Emit("client-stroke", stroke); emitErr != nil {
		respondWithAck(socket, ack, "stroke-ack", makeAckPayload(original, emitErr), emitErr)
		return
	}

	respondWithAck(socket, ack, "stroke-ack", makeAckPayload(original, nil), nil)
}

// handleSetting applies a change to the pad and sends the new state to every
// client in it, the sender included.
func handleSetting(broadcaster *Broadcaster, registry PadRegistry, socket *socketio.Socket, datas []any, apply func(*widget.Widget, []any) error) {
	padID, args, ack := parsePadArgs(datas)

	w, err := resolvePad(registry, padID)
	if err == nil {
		err = apply(w, args)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{"error": err, "padId": padID}).Warn("Pad update rejected")
		respondWithAck(socket, ack, "", makeAckPayload(nil, err), err)
		return
	}

	broadcaster.StateChanged(padID, w)
	respondWithAck(socket, ack, "", makeAckPayload(nil, nil), nil)
}

// decodePoints accepts either a bare point list or an object with a
// "points" field.
func decodePoints(args []any) ([]core.Point, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no points", core.ErrInvalidStroke)
	}

	raw := args[0]
	if m, ok := raw.(map[string]any); ok {
		raw = m["points"]
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidStroke, err)
	}
	var points []core.Point
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidStroke, err)
	}
	return points, nil
}

func stringArg(args []any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("value is required")
	}
	s, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("value must be a string, got %T", args[0])
	}
	return s, nil
}

func intArg(args []any) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("value is required")
	}
	switch v := args[0].(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%w: %v", core.ErrInvalidLineWidth, v)
		}
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("value must be a number, got %T", args[0])
	}
}

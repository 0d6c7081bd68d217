package websocket

import (
	"context"
	"errors"
	"signpad-server/core"
	"signpad-server/widget"
	"sync"
	"testing"
)

func resetActivePads() {
	padsMutex.Lock()
	activePads = make(map[string]int)
	padsMutex.Unlock()
}

func TestSetActivePad(t *testing.T) {
	resetActivePads()

	setActivePad("pad-1", 2)
	setActivePad("pad-2", 1)
	setActivePad("pad-2", 0)

	pads := GetActivePads()
	if len(pads) != 1 {
		t.Fatalf("Expected 1 active pad, got %d", len(pads))
	}
	if pads["pad-1"] != 2 {
		t.Errorf("Expected 2 users in pad-1, got %d", pads["pad-1"])
	}
}

func TestGetActivePadsReturnsCopy(t *testing.T) {
	resetActivePads()
	setActivePad("pad-1", 1)

	pads := GetActivePads()
	pads["pad-1"] = 99

	if GetActivePads()["pad-1"] != 1 {
		t.Error("GetActivePads() exposes internal state")
	}
}

func TestActivePadsConcurrency(t *testing.T) {
	resetActivePads()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			setActivePad("pad", n+1)
			_ = GetActivePads()
		}(i)
	}
	wg.Wait()

	if _, ok := GetActivePads()["pad"]; !ok {
		t.Error("Expected pad to be active after concurrent updates")
	}
}

func TestExtractAck(t *testing.T) {
	var gotErr error
	var gotPayload map[string]any
	callback := func(err error, payload map[string]any) {
		gotErr = err
		gotPayload = payload
	}

	ack, args := extractAck([]any{"pad-1", "#ff0000", callback})
	if ack == nil {
		t.Fatal("Expected ack to be extracted")
	}
	if len(args) != 2 {
		t.Fatalf("Expected 2 remaining args, got %d", len(args))
	}

	ack(errors.New("boom"), map[string]any{"status": "error"})
	if gotErr == nil || gotErr.Error() != "boom" {
		t.Errorf("Expected ack error boom, got %v", gotErr)
	}
	if gotPayload["status"] != "error" {
		t.Errorf("Expected status error, got %v", gotPayload["status"])
	}
}

func TestExtractAck_NoCallback(t *testing.T) {
	ack, args := extractAck([]any{"pad-1", 3.0})
	if ack != nil {
		t.Error("Expected no ack when last argument is not a function")
	}
	if len(args) != 2 {
		t.Errorf("Expected args untouched, got %d", len(args))
	}

	ack, args = extractAck(nil)
	if ack != nil || len(args) != 0 {
		t.Error("Expected nothing from empty arguments")
	}
}

func TestWrapAck_SingleArgument(t *testing.T) {
	var got any
	ack := wrapAck(func(v any) { got = v })

	ack(nil, map[string]any{"status": "ok"})
	if m, ok := got.(map[string]any); !ok || m["status"] != "ok" {
		t.Errorf("Expected payload for single-argument ack, got %v", got)
	}

	ack(errors.New("failed"), nil)
	if err, ok := got.(error); !ok || err.Error() != "failed" {
		t.Errorf("Expected error for single-argument ack, got %v", got)
	}
}

func TestWrapAck_StringPayload(t *testing.T) {
	var got map[string]string
	ack := wrapAck(func(_ error, payload map[string]string) { got = payload })

	ack(nil, map[string]any{"status": "ok", "ready": true})
	if got["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", got)
	}
	if _, ok := got["ready"]; ok {
		t.Error("Expected non-string values to be dropped")
	}
}

func TestParsePadArgs(t *testing.T) {
	padID, args, ack := parsePadArgs([]any{"pad-1", 10.0, func() {}})
	if padID != "pad-1" {
		t.Errorf("Expected pad id pad-1, got %q", padID)
	}
	if len(args) != 1 || args[0] != 10.0 {
		t.Errorf("Expected one remaining arg, got %v", args)
	}
	if ack == nil {
		t.Error("Expected ack")
	}

	padID, args, _ = parsePadArgs([]any{42})
	if padID != "" || len(args) != 0 {
		t.Errorf("Expected empty pad id for non-string, got %q %v", padID, args)
	}
}

func TestMakeAckPayload(t *testing.T) {
	payload := makeAckPayload(map[string]any{"messageId": "m-1"}, nil)
	if payload["status"] != "ok" || payload["messageId"] != "m-1" {
		t.Errorf("Unexpected payload %v", payload)
	}

	payload = makeAckPayload(nil, errors.New("nope"))
	if payload["status"] != "error" || payload["error"] != "nope" {
		t.Errorf("Unexpected error payload %v", payload)
	}
	if _, ok := payload["messageId"]; ok {
		t.Error("Expected no messageId without original message")
	}
}

func TestDecodePoints(t *testing.T) {
	raw := []any{
		map[string]any{"x": 1.0, "y": 2.0, "time": 100.0},
		map[string]any{"x": 3.0, "y": 4.0, "time": 116.0},
	}

	for _, args := range [][]any{
		{raw},
		{map[string]any{"points": raw, "messageId": "m-1"}},
	} {
		points, err := decodePoints(args)
		if err != nil {
			t.Fatalf("decodePoints() failed: %v", err)
		}
		if len(points) != 2 || points[1] != (core.Point{X: 3, Y: 4, Time: 116}) {
			t.Errorf("decodePoints() = %+v", points)
		}
	}

	if _, err := decodePoints([]any{"not points"}); !errors.Is(err, core.ErrInvalidStroke) {
		t.Errorf("Expected ErrInvalidStroke, got %v", err)
	}
	if _, err := decodePoints(nil); !errors.Is(err, core.ErrInvalidStroke) {
		t.Errorf("Expected ErrInvalidStroke for no args, got %v", err)
	}
}

func TestIntArg(t *testing.T) {
	if v, err := intArg([]any{5.0}); err != nil || v != 5 {
		t.Errorf("intArg(5.0) = %d, %v", v, err)
	}
	if _, err := intArg([]any{2.5}); !errors.Is(err, core.ErrInvalidLineWidth) {
		t.Errorf("intArg(2.5) error = %v, want ErrInvalidLineWidth", err)
	}
	if _, err := intArg([]any{"5"}); err == nil {
		t.Error("intArg(string) should fail")
	}
}

func TestStringArg(t *testing.T) {
	if v, err := stringArg([]any{"#00ff00"}); err != nil || v != "#00ff00" {
		t.Errorf("stringArg() = %q, %v", v, err)
	}
	if _, err := stringArg(nil); err == nil {
		t.Error("stringArg(nil) should fail")
	}
}

type stubRegistry struct {
	widgets map[string]*widget.Widget
	touched []string
}

func (s *stubRegistry) Get(ctx context.Context, id string) (*widget.Widget, error) {
	w, ok := s.widgets[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return w, nil
}

func (s *stubRegistry) TouchPad(ctx context.Context, id string) error {
	s.touched = append(s.touched, id)
	return nil
}

type nopStore struct{}

func (nopStore) Get(ctx context.Context, key string) (string, error) { return "", core.ErrNotFound }
func (nopStore) Set(ctx context.Context, key, value string) error    { return nil }

func TestResolvePad(t *testing.T) {
	w, err := widget.New(nopStore{}, nil)
	if err != nil {
		t.Fatalf("widget.New() failed: %v", err)
	}
	reg := &stubRegistry{widgets: map[string]*widget.Widget{"pad-1": w}}

	got, err := resolvePad(reg, "pad-1")
	if err != nil || got != w {
		t.Fatalf("resolvePad() = %v, %v", got, err)
	}
	if len(reg.touched) != 1 {
		t.Errorf("Expected pad activity to be recorded, got %v", reg.touched)
	}

	if _, err := resolvePad(reg, ""); err == nil {
		t.Error("Expected error for empty pad id")
	}
	if _, err := resolvePad(reg, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStateOf(t *testing.T) {
	w, _ := widget.New(nopStore{}, nil)
	if _, err := w.AddStroke([]core.Point{{X: 1, Y: 1}}); err != nil {
		t.Fatalf("AddStroke() failed: %v", err)
	}

	state := stateOf("pad-1", w)
	if state.ID != "pad-1" || len(state.Strokes) != 1 || state.Config != core.DefaultConfiguration() {
		t.Errorf("Unexpected state %+v", state)
	}
}

package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"beltline.ai/internal/observerproto"
	"beltline.ai/internal/sim/catalogs"
	"beltline.ai/internal/sim/encoding"
	"beltline.ai/internal/sim/tuning"
	"beltline.ai/internal/sim/world"
)

func startWorld(t *testing.T) (*world.World, *httptest.Server) {
	t.Helper()
	configDir := filepath.Join("..", "..", "..", "configs")
	cats, err := catalogs.Load(configDir)
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	layout, err := tuning.LoadLayout(filepath.Join(configDir, "layout.yaml"))
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	w, err := world.New(world.WorldConfig{ID: "test", TickRateHz: 100, Width: 64, Height: 64}, cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	if err := w.ApplyLayout("test", layout); err != nil {
		t.Fatalf("apply layout: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	s := NewServer(w, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/v1/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/admin/v1/observer/ws", s.WSHandler())
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return w, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/admin/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestBootstrap_DescribesWorld(t *testing.T) {
	w, srv := startWorld(t)

	resp, err := http.Get(srv.URL + "/admin/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.ProtocolVersion != observerproto.Version || b.WorldID != "test" {
		t.Fatalf("header %+v", b)
	}
	if b.WorldParams.Width != 64 || b.WorldParams.Unit != 3000 {
		t.Fatalf("params %+v", b.WorldParams)
	}
	if len(b.BlockPalette) == 0 || b.BlockPalette[0] != "AIR" || len(b.ItemPalette) != len(w.Catalogs().Items.Palette) {
		t.Fatalf("palettes blocks=%v items=%v", b.BlockPalette, b.ItemPalette)
	}
	if b.Layer.Encoding != observerproto.LayerEncoding {
		t.Fatalf("layer encoding %q", b.Layer.Encoding)
	}
	cells, err := encoding.DecodeLayer(b.Layer.Data, 64, 64)
	if err != nil {
		t.Fatalf("decode layer: %v", err)
	}
	beltID, _ := w.Catalogs().BlockID("BELT")
	if block, _ := encoding.UnpackCell(cells[4*64+1]); block != beltID {
		t.Fatalf("cell (1,4) block=%d want BELT %d", block, beltID)
	}
}

func TestBootstrap_RejectsPost(t *testing.T) {
	_, srv := startWorld(t)
	resp, err := http.Post(srv.URL+"/admin/v1/observer/bootstrap", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestWS_StreamsFrames(t *testing.T) {
	_, srv := startWorld(t)
	conn := dial(t, srv)

	sub := observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, FrameEvery: 1, MaxItems: 16}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var last uint64
	for i := 0; i < 3; i++ {
		var f observerproto.FrameMsg
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		if f.Type != "FRAME" || len(f.Segments) != 3 {
			t.Fatalf("frame %d: type=%s segments=%d", i, f.Type, len(f.Segments))
		}
		if len(f.Items) > 16 {
			t.Fatalf("frame %d: %d items over max_items", i, len(f.Items))
		}
		if i > 0 && f.Tick <= last {
			t.Fatalf("frame ticks not increasing: %d after %d", f.Tick, last)
		}
		last = f.Tick
	}
}

func TestWS_RequiresSubscribeFirst(t *testing.T) {
	_, srv := startWorld(t)
	conn := dial(t, srv)

	if err := conn.WriteJSON(map[string]string{"type": "HELLO"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("want policy violation close, got %v", err)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:80":       true,
		"::1":            true,
		"10.0.0.4:9000":  false,
		"example.com:80": false,
		"":               false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", addr, got, want)
		}
	}
}

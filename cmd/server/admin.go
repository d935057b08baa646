package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"beltline.ai/internal/sim/world"
	"beltline.ai/internal/sim/world/feature/conveyor/runtime"
)

// editReq is the body of POST /admin/v1/edit.
type editReq struct {
	Actor string `json:"actor"`
	Op    string `json:"op"` // "PLACE","REMOVE"
	Pos   [2]int `json:"pos"`
	Block string `json:"block,omitempty"`
	Dir   string `json:"dir,omitempty"`
}

func stateHandler(worldID string, w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			WorldID string             `json:"world_id"`
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{
			WorldID: worldID,
			Tick:    w.CurrentTick(),
			Metrics: w.Metrics(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// editHandler queues one block edit and waits for the tick that applies it.
func editHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		var body editReq
		if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 4096)).Decode(&body); err != nil {
			writeEditResult(rw, http.StatusBadRequest, 0, err)
			return
		}
		if body.Actor == "" {
			body.Actor = "admin"
		}
		req := world.EditRequest{
			Actor: body.Actor,
			Pos:   world.Pos{X: body.Pos[0], Y: body.Pos[1]},
			Resp:  make(chan error, 1),
		}
		switch body.Op {
		case "REMOVE":
			req.Remove = true
		case "PLACE":
			dir, ok := runtime.ParseDir(body.Dir)
			if !ok {
				writeEditResult(rw, http.StatusBadRequest, 0, world.ErrBadDir)
				return
			}
			req.Block = body.Block
			req.Dir = dir
		default:
			writeEditResult(rw, http.StatusBadRequest, 0, errors.New("op must be PLACE or REMOVE"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		select {
		case w.Edits() <- req:
		case <-ctx.Done():
			writeEditResult(rw, http.StatusServiceUnavailable, w.CurrentTick(), ctx.Err())
			return
		}
		select {
		case err := <-req.Resp:
			status := http.StatusOK
			if err != nil {
				status = http.StatusConflict
			}
			writeEditResult(rw, status, w.CurrentTick(), err)
		case <-ctx.Done():
			writeEditResult(rw, http.StatusServiceUnavailable, w.CurrentTick(), ctx.Err())
		}
	}
}

func writeEditResult(rw http.ResponseWriter, status int, tick uint64, err error) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	resp := map[string]any{"ok": err == nil, "tick": tick}
	if err != nil {
		resp["error"] = err.Error()
	}
	_ = json.NewEncoder(rw).Encode(resp)
}

// Package httpapi exposes a read-mostly HTTP interface to a running
// bridge: identity and configuration queries, a command escape hatch,
// and a websocket feed of capture summaries.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"goji.io"
	"goji.io/pat"

	"github.com/benchtop-labs/wfmbridge/bridge"
)

// RouteTable maps URL patterns to handlers.
type RouteTable map[goji.Pattern]http.HandlerFunc

// Bind attaches every route in the table to mux.
func (rt RouteTable) Bind(mux *goji.Mux) {
	for p, h := range rt {
		mux.Handle(p, h)
	}
}

// Scope wraps a bridge controller in an HTTP route table.
type Scope struct {
	Ctrl    *bridge.Controller
	Sess    *bridge.Session
	Monitor *bridge.Monitor
	Log     *zap.SugaredLogger

	upgrader websocket.Upgrader
}

// NewScope builds the HTTP wrapper.  sess handles POST /scpi; monitor
// feeds GET /monitor and may be nil to disable it.
func NewScope(ctrl *bridge.Controller, sess *bridge.Session, mon *bridge.Monitor, log *zap.SugaredLogger) *Scope {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scope{Ctrl: ctrl, Sess: sess, Monitor: mon, Log: log}
}

// RT returns the route table for this scope.
func (s *Scope) RT() RouteTable {
	rt := RouteTable{
		pat.Get("/id"):       s.getIdentity,
		pat.Get("/status"):   s.getStatus,
		pat.Get("/channels"): s.getChannels,
		pat.Get("/trigger"):  s.getTrigger,
		pat.Post("/scpi"):    s.postCommand,
	}
	if s.Monitor != nil {
		rt[pat.Get("/monitor")] = s.monitorWS
	}
	return rt
}

// Router assembles the root router with logging middleware and the scope
// mounted at /scope.
func (s *Scope) Router() chi.Router {
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	mux := goji.SubMux()
	s.RT().Bind(mux)
	root.Mount("/scope", mux)
	return root
}

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Scope) getIdentity(w http.ResponseWriter, r *http.Request) {
	id := s.Ctrl.Identity()
	respondJSON(w, map[string]interface{}{
		"make":     id.Make,
		"model":    id.Model,
		"serial":   id.Serial,
		"firmware": id.Firmware,
		"channels": id.AnalogChannels,
	})
}

func (s *Scope) getStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.Ctrl.View())
}

func (s *Scope) getChannels(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.Ctrl.View().Channels)
}

func (s *Scope) getTrigger(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.Ctrl.View().Trigger)
}

// postCommand runs one control plane line and returns its reply, if any.
// EXIT over HTTP is ignored; there is no session to end.
func (s *Scope) postCommand(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Cmd string `json:"cmd"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		defer r.Body.Close()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	reply, _ := s.Sess.Execute(body.Cmd)
	respondJSON(w, map[string]string{"reply": reply})
}

// monitorWS pushes one JSON summary per completed capture until the peer
// goes away.
func (s *Scope) monitorWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	ch, cancel := s.Monitor.Subscribe()
	defer cancel()
	for sum := range ch {
		if err := conn.WriteJSON(sum); err != nil {
			return
		}
	}
}

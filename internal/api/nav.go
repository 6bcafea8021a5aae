package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/roach88/waypost/internal/ir"
	"github.com/roach88/waypost/internal/navigation"
)

type navigateRequest struct {
	Route     string            `json:"route"`
	Params    map[string]string `json:"params"`
	Requires  string            `json:"requires"`
	Style     string            `json:"style"`
	IfAllowed bool              `json:"if_allowed"`
}

type dismissRequest struct {
	Levels int  `json:"levels"`
	Sheets bool `json:"sheets"` // dismiss sheets down to Levels remaining
}

type deepLinkRequest struct {
	URL string `json:"url"`
}

type startFlowRequest struct {
	Type string `json:"type"`
	Step string `json:"step"`
}

type advanceRequest struct {
	Data map[string]any `json:"data"`
}

// NavResult is the response of every navigation mutation: whether the
// operation took effect and the state afterwards.
type NavResult struct {
	OK      bool             `json:"ok"`
	Count   int              `json:"count,omitempty"`
	FlowID  string           `json:"flow_id,omitempty"`
	Outcome string           `json:"outcome,omitempty"`
	State   navigation.State `json:"state"`
}

// onLoop runs fn on the navigation loop and writes the result. fn returns
// the HTTP status; a zero status means 200.
func (s *Server) onLoop(w http.ResponseWriter, r *http.Request, fn func(res *NavResult) int) {
	var res NavResult
	status := http.StatusOK
	err := s.loop.Do(r.Context(), func() {
		if code := fn(&res); code != 0 {
			status = code
		}
		res.State = s.nav.Snapshot()
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, status, res)
}

func (s *Server) handleNavState(w http.ResponseWriter, r *http.Request) {
	s.onLoop(w, r, func(res *NavResult) int {
		res.OK = true
		return 0
	})
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Route == "" {
		writeError(w, http.StatusBadRequest, "route is required")
		return
	}
	var style navigation.PresentationStyle
	if req.Style != "" {
		var err error
		if style, err = navigation.ParseStyle(req.Style); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	route := navigation.Route{ID: req.Route, Params: req.Params, Requires: navigation.Entitlement(req.Requires)}

	s.onLoop(w, r, func(res *NavResult) int {
		if req.IfAllowed {
			if res.OK = s.nav.NavigateWithIfAllowed(route, style); !res.OK {
				return http.StatusForbidden
			}
			return 0
		}
		s.nav.NavigateWith(route, style)
		res.OK = true
		return 0
	})
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	req := dismissRequest{Levels: 1}
	if !decodeJSON(w, r, &req) {
		return
	}
	s.onLoop(w, r, func(res *NavResult) int {
		if req.Sheets {
			res.Count = s.nav.DismissSheets(req.Levels)
		} else {
			res.Count = s.nav.Dismiss(req.Levels)
		}
		res.OK = res.Count > 0
		return 0
	})
}

func (s *Server) handleSelectTab(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.onLoop(w, r, func(res *NavResult) int {
		if res.OK = s.nav.SelectTab(index); !res.OK {
			return http.StatusNotFound
		}
		return 0
	})
}

func (s *Server) handleDeepLink(w http.ResponseWriter, r *http.Request) {
	var req deepLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.onLoop(w, r, func(res *NavResult) int {
		if res.OK = s.nav.Handle(req.URL); !res.OK {
			return http.StatusUnprocessableEntity
		}
		return 0
	})
}

func (s *Server) handleStartFlow(w http.ResponseWriter, r *http.Request) {
	var req startFlowRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.onLoop(w, r, func(res *NavResult) int {
		flow, err := s.nav.StartFlow(req.Type, req.Step)
		if err != nil {
			res.Outcome = err.Error()
			return flowErrorStatus(err)
		}
		res.OK = true
		res.FlowID = flow.ID
		return http.StatusCreated
	})
}

func flowErrorStatus(err error) int {
	switch {
	case errors.Is(err, navigation.ErrBlocked):
		return http.StatusForbidden
	case errors.Is(err, navigation.ErrUnknownFlow), errors.Is(err, navigation.ErrUnknownStep):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleAdvanceFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req advanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	data, err := ir.ObjectFromAny(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.onLoop(w, r, func(res *NavResult) int {
		outcome := s.nav.AdvanceFlow(id, data)
		res.Outcome = outcome.String()
		res.FlowID = id
		switch outcome {
		case navigation.FlowNotFound:
			return http.StatusNotFound
		case navigation.FlowBlocked:
			return http.StatusForbidden
		}
		res.OK = true
		return 0
	})
}

func (s *Server) handleFlowBack(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.onLoop(w, r, func(res *NavResult) int {
		res.FlowID = id
		res.OK = s.nav.FlowBack(id)
		return 0
	})
}

func (s *Server) handleCancelFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.onLoop(w, r, func(res *NavResult) int {
		res.FlowID = id
		if res.OK = s.nav.CancelFlow(id); !res.OK {
			return http.StatusNotFound
		}
		return 0
	})
}

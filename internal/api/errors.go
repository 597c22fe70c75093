package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/Veraticus/basket-rules/internal/basket"
	"github.com/Veraticus/basket-rules/internal/model"
)

// ErrBadRequest marks malformed query parameters.
var ErrBadRequest = errors.New("bad request")

// Problem represents an RFC 7807 problem details object.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	Trace  string `json:"trace_id,omitempty"`
	Status int    `json:"status"`
}

// Render implements the chi render.Renderer interface.
func (p *Problem) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, p.Status)
	return nil
}

func newProblem(status int, detail string) *Problem {
	return &Problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

// problemFor maps an error to its HTTP status.
func problemFor(err error) *Problem {
	switch {
	case errors.Is(err, basket.ErrRuleNotFound):
		return newProblem(http.StatusNotFound, basket.NoRuleMessage)
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, basket.ErrPrecondition),
		errors.Is(err, model.ErrUnknownGranularity):
		return newProblem(http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return newProblem(http.StatusGatewayTimeout, "analysis timed out")
	case errors.Is(err, context.Canceled):
		// nginx's "client closed request"
		return newProblem(499, "request canceled")
	default:
		return newProblem(http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	p := problemFor(err)
	p.Trace = requestID(r)

	if p.Status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "Request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	} else {
		s.logger.DebugContext(r.Context(), "Request rejected",
			slog.String("path", r.URL.Path),
			slog.Int("status", p.Status),
			slog.String("error", err.Error()))
	}

	_ = render.Render(w, r, p)
}

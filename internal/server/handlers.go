package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/aixgo-dev/reasongraph/internal/index"
	"github.com/aixgo-dev/reasongraph/internal/reasoning"
)

const (
	maxBodyBytes    = 1 << 20
	defaultSimilarK = 5
	noQueryMessage  = "No query provided"
)

type queryRequest struct {
	Query string `json:"query" validate:"required,max=8000"`
}

type similarRequest struct {
	Query   string `validate:"required,max=8000"`
	K       int    `validate:"min=1,max=100"`
	Rebuild bool
}

type similarResponse struct {
	Items []index.Result `json:"items"`
}

// handleQuery streams a reasoning session as server-sent events. The question
// comes from the "query" URL parameter on GET or the JSON body on POST.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	} else {
		req.Query = r.URL.Query().Get("query")
	}
	req.Query = strings.TrimSpace(req.Query)

	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.StreamTimeout)
	defer cancel()

	logger := s.logger.With(zap.String("requestID", middleware.GetReqID(r.Context())))

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev, err := range s.querier.Query(ctx, req.Query) {
		if err != nil {
			logger.Error("query stream failed", zap.Error(err))
			ev = reasoning.ErrorEvent{Message: err.Error()}
		}
		if werr := writeEvent(w, ev); werr != nil {
			logger.Debug("client went away", zap.Error(werr))
			return
		}
		flusher.Flush()
		if err != nil {
			return
		}
	}
}

// handleSimilar returns the stored texts nearest to the "query" parameter.
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := similarRequest{
		Query: strings.TrimSpace(q.Get("query")),
		K:     defaultSimilarK,
	}
	if raw := q.Get("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid k")
			return
		}
		req.K = k
	}
	if raw := q.Get("rebuild"); raw != "" {
		rebuild, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid rebuild")
			return
		}
		req.Rebuild = rebuild
	}

	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	items, err := s.querier.Similar(r.Context(), req.Query, req.K, req.Rebuild)
	if err != nil {
		s.logger.Error("similar search failed", zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, index.ErrDimensionMismatch) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	if items == nil {
		items = []index.Result{}
	}
	writeJSON(w, http.StatusOK, similarResponse{Items: items})
}

func writeEvent(w http.ResponseWriter, ev reasoning.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type(), err)
	}
	return writeSSE(w, "", string(data))
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Field() == "Query" && fe.Tag() == "required" {
		return noQueryMessage
	}
	return fmt.Sprintf("invalid %s: failed %q", strings.ToLower(fe.Field()), fe.Tag())
}

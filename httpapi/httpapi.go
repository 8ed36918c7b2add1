// Package httpapi is the relay's thin control plane: register/list/remove
// destinations over plain HTTP (SPEC_FULL.md §6, SUPPLEMENTED FEATURES).
// It follows the teacher's own daemon shape (cmd/authn: a handler struct
// closing over a manager, wired onto a stdlib mux in main) scaled down to
// the handful of routes this relay actually needs.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kaicoh/dynamo-stream/cmn/cos"
	"github.com/kaicoh/dynamo-stream/cmn/nlog"
	"github.com/kaicoh/dynamo-stream/registry"
)

// maxFieldLen bounds table_name and url (spec §6: "<=255").
const maxFieldLen = 255

// Handler serves the control plane on top of a Registry.
type Handler struct {
	reg *registry.Registry
}

// NewHandler builds a Handler over reg.
func NewHandler(reg *registry.Registry) *Handler {
	return &Handler{reg: reg}
}

// Mux builds the routed http.Handler for this control plane, using Go
// 1.22's pattern-based ServeMux rather than pulling in a routing library
// the pack never shows for a surface this small.
func (h *Handler) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", h.list)
	mux.HandleFunc("POST /", h.add)
	mux.HandleFunc("DELETE /{table}/{id}", h.removeListener)
	mux.HandleFunc("DELETE /{table}", h.removeSub)
	return recoverMiddleware(mux)
}

// recoverMiddleware turns a panic surfacing from any handler into a 500
// rather than taking down the process (spec §7 rule 5: internal poisoning
// is logged at ERROR and does not terminate the process).
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				nlog.Errorf("httpapi: panic handling %s %s: %v", r.Method, r.URL.Path, v)
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reg.List())
}

type addRequest struct {
	TableName string `json:"table_name"`
	URL       string `json:"url"`
}

type addResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type validationError struct {
	Message string           `json:"message"`
	Errors  []fieldViolation `json:"errors"`
}

type fieldViolation struct {
	Field    string   `json:"field"`
	Messages []string `json:"messages"`
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	if verr := validateAdd(req); verr != nil {
		writeJSON(w, http.StatusBadRequest, verr)
		return
	}

	snap, err := h.reg.AddListener(r.Context(), req.TableName, req.URL)
	if err != nil {
		if errors.Is(err, cos.ErrNotConfigured) {
			nlog.Errorf("httpapi: POST /: table %q not configured for streaming: %v", req.TableName, err)
		} else {
			nlog.Errorf("httpapi: POST /: unexpected error: %v", err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, addResponse{ID: snap.ID, URL: snap.URL})
}

func validateAdd(req addRequest) *validationError {
	var fields []fieldViolation
	if req.TableName == "" {
		fields = append(fields, fieldViolation{Field: "table_name", Messages: []string{"can't be blank"}})
	} else if len(req.TableName) > maxFieldLen {
		fields = append(fields, fieldViolation{Field: "table_name", Messages: []string{"is too long (maximum is 255 characters)"}})
	}
	if req.URL == "" {
		fields = append(fields, fieldViolation{Field: "url", Messages: []string{"can't be blank"}})
	} else if len(req.URL) > maxFieldLen {
		fields = append(fields, fieldViolation{Field: "url", Messages: []string{"is too long (maximum is 255 characters)"}})
	}
	if len(fields) == 0 {
		return nil
	}
	return &validationError{Message: "Validation failed", Errors: fields}
}

func (h *Handler) removeListener(w http.ResponseWriter, r *http.Request) {
	h.reg.RemoveListener(r.PathValue("table"), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeSub(w http.ResponseWriter, r *http.Request) {
	h.reg.RemoveSub(r.PathValue("table"))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
)

// Failure categories carried in the "type" field.
const (
	TypeValidation = "validation_error"
	TypeClient     = "client_error"
	TypeServer     = "server_error"
)

type successBody struct {
	Code      int       `json:"code"`
	Detail    string    `json:"detail"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type errorItem struct {
	Detail string  `json:"detail"`
	Attr   *string `json:"attr"`
}

type errorBody struct {
	Type      string      `json:"type"`
	Code      int         `json:"code"`
	Errors    []errorItem `json:"errors"`
	Timestamp time.Time   `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) success(w http.ResponseWriter, status int, detail string, data any) {
	writeJSON(w, status, successBody{
		Code:      status,
		Detail:    detail,
		Data:      data,
		Timestamp: h.now().UTC(),
	})
}

func (h *Handler) failure(w http.ResponseWriter, status int, typ string, items ...errorItem) {
	if items == nil {
		items = []errorItem{}
	}
	writeJSON(w, status, errorBody{
		Type:      typ,
		Code:      status,
		Errors:    items,
		Timestamp: h.now().UTC(),
	})
}

func item(detail, attr string) errorItem {
	it := errorItem{Detail: detail}
	if attr != "" {
		it.Attr = &attr
	}
	return it
}

// fail maps a service error onto the response taxonomy. Anything not
// recognized is logged in full and reported as a bare internal error.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *common.ValidationError
	var ce *common.ConflictError

	switch {
	case errors.As(err, &ve):
		items := make([]errorItem, 0, len(ve.Fields))
		for _, f := range ve.Fields {
			items = append(items, item(f.Detail, f.Attr))
		}
		h.failure(w, http.StatusBadRequest, TypeValidation, items...)
	case errors.As(err, &ce):
		h.failure(w, http.StatusConflict, TypeClient, item(ce.Detail, ce.Attr))
	case errors.Is(err, common.ErrorUnauthorized):
		h.failure(w, http.StatusUnauthorized, TypeClient, item(unauthorizedDetail(err), ""))
	default:
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		h.failure(w, http.StatusInternalServerError, TypeServer, item("internal server error", ""))
	}
}

func unauthorizedDetail(err error) string {
	msg := strings.TrimPrefix(err.Error(), common.ErrorUnauthorized.Error()+": ")
	if msg == "" {
		return common.ErrorUnauthorized.Error()
	}
	return msg
}

package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/benpsk/itemboard/internal/item"
	"github.com/go-chi/chi/v5"
)

type createItemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type itemUserResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type itemResponse struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	CreatedAt   time.Time        `json:"createdAt"`
	CreatedBy   int64            `json:"createdBy"`
	User        itemUserResponse `json:"user"`
}

func toItemResponse(row item.ItemWithUser) itemResponse {
	return itemResponse{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		CreatedAt:   row.CreatedAt,
		CreatedBy:   row.CreatedBy,
		User: itemUserResponse{
			Name:  row.UserName,
			Email: row.UserEmail,
		},
	}
}

func (h handler) listItems(w http.ResponseWriter, r *http.Request) {
	rows, err := h.items.List(r.Context())
	if err != nil {
		writeStoreFailure(w, "list items", err)
		return
	}
	out := make([]itemResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toItemResponse(row))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSONWithLimit(w, r, &req, defaultRequestBodyLimitBytes); err != nil {
		if isRequestBodyTooLarge(err) {
			writeErrorJSON(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeErrorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	created, err := h.items.Create(r.Context(), actorID(r), req.Title, req.Description)
	if err != nil {
		h.writeItemError(w, "create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(created))
}

func (h handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseItemID(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorJSON(w, http.StatusNotFound, item.ErrNotFound.Error())
		return
	}

	if err := h.items.Delete(r.Context(), actorID(r), id); err != nil {
		h.writeItemError(w, "delete item", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Item deleted successfully"})
}

func (h handler) writeItemError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, item.ErrUnauthenticated):
		writeErrorJSON(w, http.StatusUnauthorized, "Unauthorized")
	case item.IsValidation(err):
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, item.ErrNotFound):
		writeErrorJSON(w, http.StatusNotFound, err.Error())
	case errors.Is(err, item.ErrForbidden):
		writeErrorJSON(w, http.StatusForbidden, err.Error())
	default:
		writeStoreFailure(w, op, err)
	}
}

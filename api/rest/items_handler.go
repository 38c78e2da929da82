package rest

import (
	"net/http"

	"github.com/zlnvch/flashlist/models"
	"github.com/zlnvch/flashlist/service"
)

func (h *Handler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	items, err := h.Service.ListItems(r.Context(), user.Id)
	if err != nil {
		sendServiceError(w, "List items", err)
		return
	}

	sendResponse(w, http.StatusOK, "ok", items)
}

func (h *Handler) HandleCreateItem(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req models.NewItem
	if !decodeBody(w, r, &req) {
		return
	}

	item, err := h.Service.CreateItem(r.Context(), service.CreateItemParams{
		User:      user,
		SessionId: r.Header.Get(SessionHeader),
		Item:      req,
	})
	if err != nil {
		sendServiceError(w, "Create item", err)
		return
	}

	sendResponse(w, http.StatusCreated, "created", item)
}

func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var patch models.ItemPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	item, err := h.Service.UpdateItem(r.Context(), service.UpdateItemParams{
		User:      user,
		SessionId: r.Header.Get(SessionHeader),
		ItemId:    r.PathValue("id"),
		Patch:     patch,
	})
	if err != nil {
		sendServiceError(w, "Update item", err)
		return
	}

	sendResponse(w, http.StatusOK, "updated", item)
}

func (h *Handler) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	itemId := r.PathValue("id")
	err := h.Service.DeleteItem(r.Context(), service.DeleteItemParams{
		User:      user,
		SessionId: r.Header.Get(SessionHeader),
		ItemId:    itemId,
	})
	if err != nil {
		sendServiceError(w, "Delete item", err)
		return
	}

	sendResponse(w, http.StatusOK, "deleted", models.DeletedItem{Id: itemId})
}

type reorderRequest struct {
	Items []models.ItemOrder `json:"items"`
}

func (h *Handler) HandleReorderItems(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req reorderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	updated, err := h.Service.ReorderItems(r.Context(), service.ReorderParams{
		User:      user,
		SessionId: r.Header.Get(SessionHeader),
		Items:     req.Items,
	})
	if err != nil {
		sendServiceError(w, "Reorder items", err)
		return
	}

	sendResponse(w, http.StatusOK, "reordered", models.ReorderResult{Updated: updated})
}

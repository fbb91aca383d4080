package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/naughtygopher/errors"
)

func (ht *HTTP) itemRoutes(router chi.Router) {
	router.Get("/items/{id}/type/{type}", ht.ErrorHandler(ht.PricedItem))
}

// PricedItem responds with the item identified by the `id` path param, priced for the `type`
// path param. The stored item is never modified.
func (ht *HTTP) PricedItem(w http.ResponseWriter, req *http.Request) error {
	rawID := chi.URLParam(req, "id")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return errors.InputBodyf("invalid item id provided: %s", rawID)
	}

	priced, err := ht.apis.ItemPriced(req.Context(), id, chi.URLParam(req, "type"))
	if err != nil {
		return err
	}

	return respondJSON(w, http.StatusOK, priced)
}

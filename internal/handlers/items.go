package handlers

import (
	"net/http"

	"github.com/xelth-com/eckslot/internal/services/catalog"
)

// createItem registers a stock-keeping unit
func (r *Router) createItem(w http.ResponseWriter, req *http.Request) {
	var in catalog.ItemInput
	if !decode(w, req, &in) {
		return
	}
	item, err := r.catalog.Create(req.Context(), in)
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

// listItems returns items, optionally filtered by search text and activity
func (r *Router) listItems(w http.ResponseWriter, req *http.Request) {
	items, err := r.catalog.List(req.Context(), catalog.Filter{
		Search: req.URL.Query().Get("search"),
		Active: queryBool(req, "active"),
	})
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// getItem returns a single item
func (r *Router) getItem(w http.ResponseWriter, req *http.Request) {
	item, err := r.catalog.Get(req.Context(), pathID(req))
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// itemPlacements returns every placement of an item, newest first
func (r *Router) itemPlacements(w http.ResponseWriter, req *http.Request) {
	history, err := r.placements.History(req.Context(), pathID(req))
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/xelth-com/eckslot/internal/apperr"
	"github.com/xelth-com/eckslot/internal/models"
	"github.com/xelth-com/eckslot/internal/services/layout"
	"github.com/xelth-com/eckslot/internal/services/printer"
)

func (r *Router) listWarehouses(w http.ResponseWriter, req *http.Request) {
	activeOnly := false
	if v := queryBool(req, "active"); v != nil {
		activeOnly = *v
	}
	list, err := r.layout.ListWarehouses(req.Context(), activeOnly)
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (r *Router) createWarehouse(w http.ResponseWriter, req *http.Request) {
	var in layout.WarehouseInput
	if !decode(w, req, &in) {
		return
	}
	wh, err := r.layout.CreateWarehouse(req.Context(), in)
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, wh)
}

// getWarehouse returns a warehouse with its areas
func (r *Router) getWarehouse(w http.ResponseWriter, req *http.Request) {
	wh, err := r.layout.GetWarehouse(req.Context(), pathID(req))
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wh)
}

func (r *Router) updateWarehouse(w http.ResponseWriter, req *http.Request) {
	var in layout.WarehouseInput
	if !decode(w, req, &in) {
		return
	}
	wh, err := r.layout.UpdateWarehouse(req.Context(), pathID(req), in)
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wh)
}

func (r *Router) deleteWarehouse(w http.ResponseWriter, req *http.Request) {
	if err := r.layout.DeleteWarehouse(req.Context(), pathID(req)); err != nil {
		r.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// warehouseAreas lists areas, optionally by kind and availability
func (r *Router) warehouseAreas(w http.ResponseWriter, req *http.Request) {
	areas, err := r.layout.ListAreas(req.Context(), layout.AreaFilter{
		WarehouseID: pathID(req),
		Kind:        models.AreaKind(req.URL.Query().Get("kind")),
		Available:   queryBool(req, "available"),
	})
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, areas)
}

func (r *Router) warehouseStats(w http.ResponseWriter, req *http.Request) {
	stats, err := r.layout.Stats(req.Context(), pathID(req))
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (r *Router) warehouseCapacity(w http.ResponseWriter, req *http.Request) {
	usage, err := r.ledger.WarehouseUsage(req.Context(), pathID(req))
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, usage)
}

// areaLabels renders a printable QR label sheet for every area
func (r *Router) areaLabels(w http.ResponseWriter, req *http.Request) {
	wh, err := r.layout.GetWarehouse(req.Context(), pathID(req))
	if err != nil {
		r.fail(w, err)
		return
	}
	if len(wh.Areas) == 0 {
		r.fail(w, apperr.Invalid("areas", "warehouse has no storage areas"))
		return
	}

	sheet := printer.DefaultLayout()
	if cols := queryInt(req, "cols"); cols > 0 {
		sheet.Cols = cols
	}
	if rows := queryInt(req, "rows"); rows > 0 {
		sheet.Rows = rows
	}

	pdfBytes, err := printer.AreaLabelsPDF(wh, wh.Areas, sheet)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate PDF: %v", err))
		return
	}

	// Set headers for download
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"area_labels_%d.pdf\"", wh.ID))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdfBytes)))
	w.Write(pdfBytes)
}

func (r *Router) createArea(w http.ResponseWriter, req *http.Request) {
	var in layout.AreaInput
	if !decode(w, req, &in) {
		return
	}
	area, err := r.layout.CreateArea(req.Context(), in)
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, area)
}

func (r *Router) getArea(w http.ResponseWriter, req *http.Request) {
	area, err := r.layout.GetArea(req.Context(), pathID(req))
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, area)
}

func (r *Router) updateArea(w http.ResponseWriter, req *http.Request) {
	var patch layout.AreaPatch
	if !decode(w, req, &patch) {
		return
	}
	area, err := r.layout.UpdateArea(req.Context(), pathID(req), patch)
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, area)
}

func (r *Router) deleteArea(w http.ResponseWriter, req *http.Request) {
	if err := r.layout.DeleteArea(req.Context(), pathID(req)); err != nil {
		r.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) toggleArea(w http.ResponseWriter, req *http.Request) {
	area, err := r.layout.ToggleAvailability(req.Context(), pathID(req))
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, area)
}

func (r *Router) areaCapacity(w http.ResponseWriter, req *http.Request) {
	usage, err := r.placements.AreaCapacity(req.Context(), pathID(req))
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, usage)
}

package handlers

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/xelth-com/eckslot/internal/models"
	"github.com/xelth-com/eckslot/internal/services/placement"
	"github.com/xelth-com/eckslot/internal/services/report"
)

func (r *Router) createPlacement(w http.ResponseWriter, req *http.Request) {
	var body placement.CreateRequest
	if !decode(w, req, &body) {
		return
	}
	body.CreatedBy = operator(req)

	p, err := r.placements.Create(req.Context(), body)
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// listPlacements supports warehouse_id, area_id, item_id, status, search,
// page and per_page
func (r *Router) listPlacements(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	page, err := r.placements.List(req.Context(), placement.Filter{
		WarehouseID: queryUint(req, "warehouse_id"),
		AreaID:      queryUint(req, "area_id"),
		ItemID:      queryUint(req, "item_id"),
		Status:      models.PlacementStatus(q.Get("status")),
		Search:      q.Get("search"),
		Page:        queryInt(req, "page"),
		PerPage:     queryInt(req, "per_page"),
	})
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (r *Router) getPlacement(w http.ResponseWriter, req *http.Request) {
	p, err := r.placements.Get(req.Context(), pathID(req))
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (r *Router) updatePlacement(w http.ResponseWriter, req *http.Request) {
	var body placement.UpdateRequest
	if !decode(w, req, &body) {
		return
	}
	p, err := r.placements.Update(req.Context(), pathID(req), body)
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (r *Router) deletePlacement(w http.ResponseWriter, req *http.Request) {
	if err := r.placements.Delete(req.Context(), pathID(req)); err != nil {
		r.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// expiringPlacements lists placements expiring within ?days (default 7)
func (r *Router) expiringPlacements(w http.ResponseWriter, req *http.Request) {
	list, err := r.placements.ExpiringSoon(req.Context(), queryInt(req, "days"))
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (r *Router) placementStatistics(w http.ResponseWriter, req *http.Request) {
	stats, err := r.placements.Statistics(req.Context())
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// exportPlacements downloads the filtered placements as xlsx or csv
func (r *Router) exportPlacements(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	format, err := report.ParseFormat(q.Get("format"))
	if err != nil {
		r.fail(w, err)
		return
	}
	list, err := r.placements.All(req.Context(), placement.Filter{
		WarehouseID: queryUint(req, "warehouse_id"),
		AreaID:      queryUint(req, "area_id"),
		ItemID:      queryUint(req, "item_id"),
		Status:      models.PlacementStatus(q.Get("status")),
		Search:      q.Get("search"),
	})
	if err != nil {
		r.fail(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.Placements(&buf, list, format); err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate export: %v", err))
		return
	}
	log.Printf("📤 Export: %d placements as %s for operator %s", len(list), format, operator(req))

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", format.Filename(time.Now())))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

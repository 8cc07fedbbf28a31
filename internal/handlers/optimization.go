package handlers

import (
	"net/http"

	"github.com/xelth-com/eckslot/internal/models"
	"github.com/xelth-com/eckslot/internal/services/optimization"
)

// submitJob runs an optimization to completion before answering
func (r *Router) submitJob(w http.ResponseWriter, req *http.Request) {
	var body optimization.SubmitRequest
	if !decode(w, req, &body) {
		return
	}
	body.CreatedBy = operator(req)

	res, err := r.jobs.Submit(req.Context(), body)
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (r *Router) listJobs(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	page, err := r.jobs.List(req.Context(), optimization.Filter{
		Status:    models.JobStatus(q.Get("status")),
		Algorithm: q.Get("algorithm"),
		Page:      queryInt(req, "page"),
		PerPage:   queryInt(req, "per_page"),
	})
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// getJob reports status and progress of one job
func (r *Router) getJob(w http.ResponseWriter, req *http.Request) {
	view, err := r.jobs.Status(req.Context(), pathID(req))
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (r *Router) cancelJob(w http.ResponseWriter, req *http.Request) {
	job, err := r.jobs.Cancel(req.Context(), pathID(req))
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (r *Router) deleteJob(w http.ResponseWriter, req *http.Request) {
	if err := r.jobs.Delete(req.Context(), pathID(req)); err != nil {
		r.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) listAlgorithms(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, r.jobs.Algorithms())
}

// warehouseState shows the snapshot a solver would receive
func (r *Router) warehouseState(w http.ResponseWriter, req *http.Request) {
	snap, err := r.jobs.WarehouseState(req.Context(), queryIDs(req, "warehouse_ids"))
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

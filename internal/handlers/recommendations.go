package handlers

import (
	"net/http"

	"github.com/xelth-com/eckslot/internal/models"
	"github.com/xelth-com/eckslot/internal/services/recommendation"
)

type createRecommendationsRequest struct {
	JobID           uint                      `json:"job_id"`
	Recommendations []recommendation.Proposal `json:"recommendations"`
}

type statusRequest struct {
	Status models.RecommendationStatus `json:"status"`
	Note   string                      `json:"note"`
}

type bulkApproveRequest struct {
	IDs  []uint `json:"ids"`
	Note string `json:"note"`
}

type implementRequest struct {
	Quantity int `json:"quantity"`
}

// createRecommendations stores a batch for a job, all or nothing
func (r *Router) createRecommendations(w http.ResponseWriter, req *http.Request) {
	var body createRecommendationsRequest
	if !decode(w, req, &body) {
		return
	}
	recs, err := r.recommendations.BulkCreate(req.Context(), body.JobID, body.Recommendations)
	if err != nil {
		r.fail(w, err)
		return
	}
	r.publish("recommendation.created", map[string]interface{}{"job_id": body.JobID, "count": len(recs)})
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"created": len(recs),
		"data":    recs,
	})
}

func (r *Router) listRecommendations(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	page, err := r.recommendations.List(req.Context(), recommendation.Filter{
		Status:    models.RecommendationStatus(q.Get("status")),
		JobID:     queryUint(req, "job_id"),
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

func (r *Router) recommendationStatistics(w http.ResponseWriter, req *http.Request) {
	stats, err := r.recommendations.Statistics(req.Context(), queryUint(req, "job_id"))
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (r *Router) bulkApprove(w http.ResponseWriter, req *http.Request) {
	var body bulkApproveRequest
	if !decode(w, req, &body) {
		return
	}
	n, err := r.recommendations.BulkApprove(req.Context(), body.IDs, body.Note, operator(req))
	if err != nil {
		r.fail(w, err)
		return
	}
	if n > 0 {
		r.publish("recommendation.approved", map[string]interface{}{"ids": body.IDs, "count": n})
	}
	respondJSON(w, http.StatusOK, map[string]int64{"approved": n})
}

func (r *Router) getRecommendation(w http.ResponseWriter, req *http.Request) {
	rec, err := r.recommendations.Get(req.Context(), pathID(req))
	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// updateRecommendation moves a recommendation through review
func (r *Router) updateRecommendation(w http.ResponseWriter, req *http.Request) {
	var body statusRequest
	if !decode(w, req, &body) {
		return
	}
	rec, err := r.recommendations.UpdateStatus(req.Context(), pathID(req), body.Status, body.Note, operator(req))
	if err != nil {
		r.fail(w, err)
		return
	}
	r.publish("recommendation."+string(rec.Status), rec)
	respondJSON(w, http.StatusOK, rec)
}

func (r *Router) deleteRecommendation(w http.ResponseWriter, req *http.Request) {
	if err := r.recommendations.Delete(req.Context(), pathID(req)); err != nil {
		r.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// implementRecommendation turns an approved recommendation into a placement
func (r *Router) implementRecommendation(w http.ResponseWriter, req *http.Request) {
	var body implementRequest
	if !decode(w, req, &body) {
		return
	}
	res, err := r.recommendations.Implement(req.Context(), pathID(req), body.Quantity, operator(req))
	if err != nil {
		r.fail(w, err)
		return
	}
	r.publish("recommendation.implemented", res.Recommendation)
	respondJSON(w, http.StatusCreated, res)
}

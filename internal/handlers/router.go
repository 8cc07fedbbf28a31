package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/xelth-com/eckslot/internal/apperr"
	"github.com/xelth-com/eckslot/internal/buildinfo"
	"github.com/xelth-com/eckslot/internal/config"
	"github.com/xelth-com/eckslot/internal/database"
	"github.com/xelth-com/eckslot/internal/middleware"
	"github.com/xelth-com/eckslot/internal/services/capacity"
	"github.com/xelth-com/eckslot/internal/services/catalog"
	"github.com/xelth-com/eckslot/internal/services/layout"
	"github.com/xelth-com/eckslot/internal/services/optimization"
	"github.com/xelth-com/eckslot/internal/services/placement"
	"github.com/xelth-com/eckslot/internal/services/recommendation"
	"github.com/xelth-com/eckslot/internal/solver"
	"github.com/xelth-com/eckslot/internal/websocket"
)

var errUnknownBarcode = &apperr.NotFoundError{Entity: "barcode"}

// Options wires the router to its collaborators
type Options struct {
	JWTSecret string
	Debug     bool
	Hub       *websocket.Hub // nil disables /ws and event publishing
	Registry  *solver.Registry
	Tuning    config.SolverTuning
}

// Router wraps the mux router and the storage services
type Router struct {
	*mux.Router
	db              *database.DB
	hub             *websocket.Hub
	debug           bool
	ledger          *capacity.Ledger
	layout          *layout.Service
	catalog         *catalog.Service
	placements      *placement.Service
	jobs            *optimization.Manager
	recommendations *recommendation.Service
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(db *database.DB, opts Options) *Router {
	ledger := capacity.NewLedger(db)
	r := &Router{
		Router:          mux.NewRouter(),
		db:              db,
		hub:             opts.Hub,
		debug:           opts.Debug,
		ledger:          ledger,
		layout:          layout.NewService(db, ledger),
		catalog:         catalog.NewService(db),
		placements:      placement.NewService(db, ledger),
		recommendations: recommendation.NewService(db),
	}

	jobOpts := optimization.Options{Tuning: opts.Tuning, Debug: opts.Debug}
	if opts.Hub != nil {
		jobOpts.Notifier = opts.Hub
	}
	registry := opts.Registry
	if registry == nil {
		registry = solver.NewRegistry()
	}
	r.jobs = optimization.NewManager(db, registry, jobOpts)

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	if r.hub != nil {
		r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
			websocket.ServeWs(r.hub, w, req)
		})
	}

	// API routes (protected)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(opts.JWTSecret))
	api.HandleFunc("/status", r.getStatus).Methods("GET")
	api.HandleFunc("/scan", r.handleScan).Methods("POST")

	// Warehouses and storage areas
	api.HandleFunc("/warehouses", r.listWarehouses).Methods("GET")
	api.HandleFunc("/warehouses", r.createWarehouse).Methods("POST")
	api.HandleFunc("/warehouses/{id:[0-9]+}", r.getWarehouse).Methods("GET")
	api.HandleFunc("/warehouses/{id:[0-9]+}", r.updateWarehouse).Methods("PUT")
	api.HandleFunc("/warehouses/{id:[0-9]+}", r.deleteWarehouse).Methods("DELETE")
	api.HandleFunc("/warehouses/{id:[0-9]+}/areas", r.warehouseAreas).Methods("GET")
	api.HandleFunc("/warehouses/{id:[0-9]+}/stats", r.warehouseStats).Methods("GET")
	api.HandleFunc("/warehouses/{id:[0-9]+}/capacity", r.warehouseCapacity).Methods("GET")
	api.HandleFunc("/warehouses/{id:[0-9]+}/area-labels.pdf", r.areaLabels).Methods("GET")

	api.HandleFunc("/areas", r.createArea).Methods("POST")
	api.HandleFunc("/areas/{id:[0-9]+}", r.getArea).Methods("GET")
	api.HandleFunc("/areas/{id:[0-9]+}", r.updateArea).Methods("PUT")
	api.HandleFunc("/areas/{id:[0-9]+}", r.deleteArea).Methods("DELETE")
	api.HandleFunc("/areas/{id:[0-9]+}/toggle", r.toggleArea).Methods("POST")
	api.HandleFunc("/areas/{id:[0-9]+}/capacity", r.areaCapacity).Methods("GET")

	// Items
	api.HandleFunc("/items", r.listItems).Methods("GET")
	api.HandleFunc("/items", r.createItem).Methods("POST")
	api.HandleFunc("/items/{id:[0-9]+}", r.getItem).Methods("GET")
	api.HandleFunc("/items/{id:[0-9]+}/placements", r.itemPlacements).Methods("GET")

	// Placements
	api.HandleFunc("/placements", r.listPlacements).Methods("GET")
	api.HandleFunc("/placements", r.createPlacement).Methods("POST")
	api.HandleFunc("/placements/expiring", r.expiringPlacements).Methods("GET")
	api.HandleFunc("/placements/statistics", r.placementStatistics).Methods("GET")
	api.HandleFunc("/placements/export", r.exportPlacements).Methods("GET")
	api.HandleFunc("/placements/{id:[0-9]+}", r.getPlacement).Methods("GET")
	api.HandleFunc("/placements/{id:[0-9]+}", r.updatePlacement).Methods("PATCH")
	api.HandleFunc("/placements/{id:[0-9]+}", r.deletePlacement).Methods("DELETE")

	// Optimization
	api.HandleFunc("/optimization-jobs", r.listJobs).Methods("GET")
	api.HandleFunc("/optimization-jobs", r.submitJob).Methods("POST")
	api.HandleFunc("/optimization-jobs/{id:[0-9]+}", r.getJob).Methods("GET")
	api.HandleFunc("/optimization-jobs/{id:[0-9]+}", r.deleteJob).Methods("DELETE")
	api.HandleFunc("/optimization-jobs/{id:[0-9]+}/cancel", r.cancelJob).Methods("POST")
	api.HandleFunc("/optimization/algorithms", r.listAlgorithms).Methods("GET")
	api.HandleFunc("/optimization/warehouse-state", r.warehouseState).Methods("GET")

	// Recommendations
	api.HandleFunc("/recommendations", r.listRecommendations).Methods("GET")
	api.HandleFunc("/recommendations", r.createRecommendations).Methods("POST")
	api.HandleFunc("/recommendations/statistics", r.recommendationStatistics).Methods("GET")
	api.HandleFunc("/recommendations/bulk-approve", r.bulkApprove).Methods("POST")
	api.HandleFunc("/recommendations/{id:[0-9]+}", r.getRecommendation).Methods("GET")
	api.HandleFunc("/recommendations/{id:[0-9]+}", r.updateRecommendation).Methods("PATCH")
	api.HandleFunc("/recommendations/{id:[0-9]+}", r.deleteRecommendation).Methods("DELETE")
	api.HandleFunc("/recommendations/{id:[0-9]+}/implement", r.implementRecommendation).Methods("POST")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	status, code := "ok", http.StatusOK
	if err := r.db.Ping(req.Context()); err != nil {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]string{
		"status":   status,
		"database": r.db.Dialector.Name(),
	})
}

// getStatus returns build and runtime information
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	listeners := 0
	if r.hub != nil {
		listeners = r.hub.ClientCount()
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "running",
		"build":      buildinfo.Info(),
		"uptime":     time.Since(buildinfo.StartTime).Round(time.Second).String(),
		"listeners":  listeners,
		"algorithms": len(r.jobs.Algorithms().Algorithms),
	})
}

// publish forwards an event to websocket listeners
func (r *Router) publish(event string, payload interface{}) {
	if r.hub != nil {
		r.hub.Notify(event, payload)
	}
}

// fail maps a service error onto an HTTP response
func (r *Router) fail(w http.ResponseWriter, err error) {
	var (
		verr *apperr.ValidationError
		nerr *apperr.NotFoundError
		gerr *apperr.GeometryConflictError
		cerr *apperr.CapacityExceededError
		xerr *apperr.ConflictError
		jerr *apperr.JobFailedError
		perr *apperr.ProcessError
	)
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  verr.Error(),
			"fields": verr.Fields,
		})
	case errors.As(err, &nerr):
		respondError(w, http.StatusNotFound, nerr.Error())
	case errors.As(err, &gerr):
		respondJSON(w, http.StatusConflict, map[string]interface{}{
			"error":         gerr.Error(),
			"conflict_id":   gerr.AreaID,
			"conflict_code": gerr.AreaCode,
		})
	case errors.As(err, &cerr):
		respondJSON(w, http.StatusConflict, map[string]interface{}{
			"error":     cerr.Error(),
			"area_id":   cerr.AreaID,
			"remaining": cerr.Remaining,
			"requested": cerr.Requested,
		})
	case errors.As(err, &xerr):
		respondError(w, http.StatusConflict, xerr.Error())
	case errors.As(err, &jerr):
		respondJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":  jerr.Error(),
			"job_id": jerr.JobID,
		})
	case errors.As(err, &perr):
		msg := "optimization run failed"
		if r.debug {
			msg = perr.Error()
		}
		respondError(w, http.StatusBadGateway, msg)
	default:
		log.Printf("❌ API: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// decode reads a JSON body into v, answering 400 on failure
func decode(w http.ResponseWriter, req *http.Request, v interface{}) bool {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

// pathID parses the {id} route variable
func pathID(req *http.Request) uint {
	id, _ := strconv.ParseUint(mux.Vars(req)["id"], 10, 64)
	return uint(id)
}

// queryUint parses an optional unsigned query parameter
func queryUint(req *http.Request, key string) uint {
	v, _ := strconv.ParseUint(req.URL.Query().Get(key), 10, 64)
	return uint(v)
}

func queryInt(req *http.Request, key string) int {
	v, _ := strconv.Atoi(req.URL.Query().Get(key))
	return v
}

// queryBool returns nil when the parameter is absent or malformed
func queryBool(req *http.Request, key string) *bool {
	v, err := strconv.ParseBool(req.URL.Query().Get(key))
	if err != nil {
		return nil
	}
	return &v
}

// queryIDs accepts repeated and comma-separated ids
func queryIDs(req *http.Request, key string) []uint {
	var ids []uint
	for _, raw := range req.URL.Query()[key] {
		for _, part := range strings.Split(raw, ",") {
			if id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64); err == nil {
				ids = append(ids, uint(id))
			}
		}
	}
	return ids
}

func operator(req *http.Request) string {
	return middleware.Operator(req.Context())
}

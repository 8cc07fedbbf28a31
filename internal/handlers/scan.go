package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/xelth-com/eckslot/internal/models"
	"github.com/xelth-com/eckslot/internal/services/capacity"
	"github.com/xelth-com/eckslot/internal/services/printer"
	"gorm.io/gorm"
)

// ScanRequest represents the payload from a scanner
type ScanRequest struct {
	Barcode string `json:"barcode"`
}

// ScanResponse standardizes the scan result
type ScanResponse struct {
	Type    string      `json:"type"`           // area, item
	Message string      `json:"message"`        // Human readable status
	Action  string      `json:"action"`         // found
	Data    interface{} `json:"data,omitempty"` // The resulting object
}

// areaScan is an area label resolved to the area and its live usage
type areaScan struct {
	Area  *models.StorageArea `json:"area"`
	Usage *capacity.Usage     `json:"usage"`
}

// handleScan resolves an area label QR code or an item code
func (r *Router) handleScan(w http.ResponseWriter, req *http.Request) {
	var body ScanRequest
	if !decode(w, req, &body) {
		return
	}

	barcode := strings.TrimSpace(body.Barcode)
	if barcode == "" {
		respondError(w, http.StatusBadRequest, "Empty barcode")
		return
	}

	var resp ScanResponse
	var err error
	if warehouseID, code, ok := printer.ParseLabel(barcode); ok {
		resp, err = r.processAreaScan(req, warehouseID, code)
	} else {
		// Fallback: treat the barcode as an item code
		resp, err = r.processItemScan(req, barcode)
	}

	if err != nil {
		r.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (r *Router) processAreaScan(req *http.Request, warehouseID uint, code string) (ScanResponse, error) {
	var area models.StorageArea
	err := r.db.WithContext(req.Context()).
		Where("warehouse_id = ? AND code = ?", warehouseID, code).
		First(&area).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ScanResponse{}, errUnknownBarcode
	}
	if err != nil {
		return ScanResponse{}, err
	}

	usage, err := r.ledger.AreaUsage(req.Context(), area.ID)
	if err != nil {
		return ScanResponse{}, err
	}
	return ScanResponse{Type: "area", Action: "found", Message: area.Code, Data: areaScan{Area: &area, Usage: usage}}, nil
}

func (r *Router) processItemScan(req *http.Request, barcode string) (ScanResponse, error) {
	item, ok, err := r.catalog.ByCode(req.Context(), barcode)
	if err != nil {
		return ScanResponse{}, err
	}
	if !ok {
		return ScanResponse{}, errUnknownBarcode
	}
	return ScanResponse{Type: "item", Action: "found", Message: item.Name, Data: item}, nil
}

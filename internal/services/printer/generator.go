// Package printer renders storage-area label sheets as PDF.
package printer

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
	"github.com/xelth-com/eckslot/internal/models"
)

// LabelLayout holds the sheet geometry in millimetres
type LabelLayout struct {
	Cols       int     `json:"cols"`
	Rows       int     `json:"rows"`
	MarginTop  float64 `json:"marginTop"`
	MarginLeft float64 `json:"marginLeft"`
	GapX       float64 `json:"gapX"`
	GapY       float64 `json:"gapY"`
}

// DefaultLayout is a 2x4 sheet of large shelf labels
func DefaultLayout() LabelLayout {
	return LabelLayout{Cols: 2, Rows: 4, MarginTop: 10, MarginLeft: 10, GapX: 5, GapY: 5}
}

// LabelContent is what the QR code on an area label encodes
func LabelContent(warehouseID uint, code string) string {
	return fmt.Sprintf("ECKSLOT/W%d/%s", warehouseID, code)
}

// ParseLabel reverses LabelContent
func ParseLabel(content string) (warehouseID uint, code string, ok bool) {
	parts := strings.SplitN(content, "/", 3)
	if len(parts) != 3 || parts[0] != "ECKSLOT" || !strings.HasPrefix(parts[1], "W") || parts[2] == "" {
		return 0, "", false
	}
	id, err := strconv.ParseUint(parts[1][1:], 10, 64)
	if err != nil || id == 0 {
		return 0, "", false
	}
	return uint(id), parts[2], true
}

// AreaLabelsPDF renders one label per area: QR code, area code, name,
// footprint and declared capacity
func AreaLabelsPDF(warehouse *models.Warehouse, areas []models.StorageArea, layout LabelLayout) ([]byte, error) {
	if len(areas) == 0 {
		return nil, errors.New("no areas to print")
	}
	if layout.Cols <= 0 || layout.Rows <= 0 {
		layout = DefaultLayout()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(fmt.Sprintf("Area labels - %s", warehouse.Name), true)
	pdf.SetFont("Arial", "B", 10)

	// A4 dimensions
	pageWidth, pageHeight := 210.0, 297.0

	totalGapX := float64(layout.Cols-1) * layout.GapX
	totalGapY := float64(layout.Rows-1) * layout.GapY
	availW := pageWidth - (layout.MarginLeft * 2)
	availH := pageHeight - (layout.MarginTop * 2)
	labelW := (availW - totalGapX) / float64(layout.Cols)
	labelH := (availH - totalGapY) / float64(layout.Rows)

	labelsPerPage := layout.Cols * layout.Rows
	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}

	for i, area := range areas {
		if i%labelsPerPage == 0 {
			pdf.AddPage()
		}

		indexOnPage := i % labelsPerPage
		col := indexOnPage % layout.Cols
		row := indexOnPage / layout.Cols
		x := layout.MarginLeft + float64(col)*(labelW+layout.GapX)
		y := layout.MarginTop + float64(row)*(labelH+layout.GapY)

		qrPng, err := qrcode.Encode(LabelContent(warehouse.ID, area.Code), qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("qr for area %s: %w", area.Code, err)
		}
		imgName := fmt.Sprintf("qr_%d", area.ID)
		pdf.RegisterImageOptionsReader(imgName, imgOptions, bytes.NewReader(qrPng))

		// QR on the left half, text on the right
		qrSize := labelH * 0.8
		if qrSize > labelW/2 {
			qrSize = labelW / 2
		}
		pdf.ImageOptions(imgName, x+2, y+(labelH-qrSize)/2, qrSize, qrSize, false, imgOptions, 0, "")

		textX := x + qrSize + 4
		textW := labelW - qrSize - 6

		pdf.SetXY(textX, y+6)
		pdf.SetFont("Arial", "B", 20)
		pdf.CellFormat(textW, 10, area.Code, "", 2, "L", false, 0, "")

		pdf.SetFont("Arial", "", 9)
		pdf.SetX(textX)
		pdf.CellFormat(textW, 5, pdf.UnicodeTranslatorFromDescriptor("")(area.Name), "", 2, "L", false, 0, "")
		pdf.SetX(textX)
		pdf.CellFormat(textW, 5, fmt.Sprintf("%.2f x %.2f x %.2f m", area.Length, area.Width, area.Height), "", 2, "L", false, 0, "")
		pdf.SetX(textX)
		pdf.CellFormat(textW, 5, fmt.Sprintf("Capacity %.2f m3 (%s)", area.Capacity, area.Kind), "", 2, "L", false, 0, "")

		pdf.SetXY(x, y+labelH-6)
		pdf.SetFontSize(6)
		pdf.CellFormat(labelW-2, 4, warehouse.Name, "", 0, "R", false, 0, "")

		// Cut guide
		pdf.SetDrawColor(200, 200, 200)
		pdf.Rect(x, y, labelW, labelH, "D")
	}

	if err := pdf.Error(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

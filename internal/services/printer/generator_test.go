package printer

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckslot/internal/models"
)

func TestAreaLabelsPDF(t *testing.T) {
	wh := &models.Warehouse{ID: 4, Name: "North"}
	var areas []models.StorageArea
	for i := 1; i <= 9; i++ {
		areas = append(areas, models.StorageArea{
			ID: uint(i), WarehouseID: wh.ID, Code: fmt.Sprintf("A%02d", i), Name: "Rack",
			Length: 2, Width: 1, Height: 3, Capacity: 6, Kind: models.AreaKindShelf,
		})
	}

	pdf, err := AreaLabelsPDF(wh, areas, LabelLayout{})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
	// 9 labels on a 2x4 sheet need two pages
	pages := bytes.Count(pdf, []byte("/Type /Page")) - bytes.Count(pdf, []byte("/Type /Pages"))
	assert.Equal(t, 2, pages)
}

func TestAreaLabelsPDFRequiresAreas(t *testing.T) {
	_, err := AreaLabelsPDF(&models.Warehouse{Name: "Empty"}, nil, DefaultLayout())
	assert.Error(t, err)
}

func TestLabelRoundTrip(t *testing.T) {
	content := LabelContent(4, "A01")
	assert.Equal(t, "ECKSLOT/W4/A01", content)

	id, code, ok := ParseLabel(content)
	require.True(t, ok)
	assert.EqualValues(t, 4, id)
	assert.Equal(t, "A01", code)

	for _, bad := range []string{"", "SKU-1", "ECKSLOT/4/A01", "ECKSLOT/W0/A01", "ECKSLOT/Wx/A01", "ECKSLOT/W4/"} {
		_, _, ok := ParseLabel(bad)
		assert.False(t, ok, bad)
	}
}

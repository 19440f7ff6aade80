package controllers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/dishevent/dishevent-server/middleware"
	"github.com/dishevent/dishevent-server/models"
	"github.com/dishevent/dishevent-server/services"
)

const (
	exportCSV  = "csv"
	exportXLSX = "xlsx"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var guestExportHeader = []string{"name", "email", "phone", "response", "attendees", "note", "invited_at", "responded_at"}

type exportQuery struct {
	Format string `form:"format" binding:"omitempty,oneof=csv xlsx"`
}

type ExportController struct {
	guests *services.GuestService
}

func NewExportController(guests *services.GuestService) *ExportController {
	return &ExportController{guests: guests}
}

// GET /api/events/:id/guests/export?format=csv|xlsx
func (h *ExportController) ExportGuests(c *gin.Context) {
	// 1. Lấy sự kiện (CheckEventOwner đã nạp vào context)
	ev, ok := middleware.EventFromContext(c)
	if !ok {
		respondError(c, services.ErrEventNotFound)
		return
	}
	// 2. Định dạng xuất
	var q exportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFailed(c, err, "format must be csv or xlsx")
		return
	}
	format := q.Format
	if format == "" {
		format = exportCSV
	}

	// 3. Lấy danh sách khách
	guests, err := h.guests.List(c.Request.Context(), middleware.CurrentIdentity(c), ev.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	rows := guestRows(guests)
	filename := fmt.Sprintf("guests_%s_%s.%s", ev.ID, time.Now().UTC().Format("20060102"), format)

	var (
		body        []byte
		contentType string
	)
	switch format {
	case exportXLSX:
		body, err = writeXLSX(ev, rows)
		contentType = xlsxContentType
	default:
		body, err = writeCSV(rows)
		contentType = "text/csv; charset=utf-8"
	}
	if err != nil {
		respondError(c, fmt.Errorf("export guests: %w", err))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, body)
}

func guestRows(guests []models.Guest) [][]string {
	rows := make([][]string, 0, len(guests)+1)
	rows = append(rows, guestExportHeader)
	for _, g := range guests {
		responded := ""
		if g.RespondedAt != nil {
			responded = g.RespondedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			g.Name,
			g.Email,
			deref(g.Phone),
			string(g.Response),
			strconv.Itoa(g.Attendees),
			deref(g.Note),
			g.InvitedAt.UTC().Format(time.RFC3339),
			responded,
		})
	}
	return rows
}

func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeXLSX(ev *models.Event, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Guests"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		// attendees stays numeric so owners can sum it
		if i > 0 {
			if n, err := strconv.Atoi(row[4]); err == nil {
				values[4] = n
			}
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, err
		}
	}

	summary := len(rows) + 2
	totalCell, _ := excelize.CoordinatesToCellName(1, summary)
	if err := f.SetSheetRow(sheet, totalCell, &[]interface{}{ev.Name, "attending"}); err != nil {
		return nil, err
	}
	if len(rows) > 1 {
		sumCell, _ := excelize.CoordinatesToCellName(5, summary)
		formula := fmt.Sprintf(`SUMIF(D2:D%d,"yes",E2:E%d)`, len(rows), len(rows))
		if err := f.SetCellFormula(sheet, sumCell, formula); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

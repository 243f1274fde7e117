package render

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const qrImageName = "pickup-qr"

// PDF lays out the stub on a single A5 page.
func PDF(s Stub) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A5", "")
	doc.SetTitle("Document Pickup Stub", true)
	doc.SetMargins(12, 12, 12)
	doc.SetAutoPageBreak(false, 0)
	doc.AddPage()
	tr := doc.UnicodeTranslatorFromDescriptor("")

	pageW, _ := doc.GetPageSize()
	contentW := pageW - 24

	doc.SetFont("Helvetica", "B", 15)
	doc.CellFormat(contentW, 8, tr(s.School.Name), "", 1, "C", false, 0, "")
	doc.SetFont("Helvetica", "", 9)
	if s.School.Address != "" {
		doc.CellFormat(contentW, 5, tr(s.School.Address), "", 1, "C", false, 0, "")
	}
	doc.Ln(3)
	doc.SetFont("Helvetica", "B", 13)
	doc.CellFormat(contentW, 8, "DOCUMENT PICKUP STUB", "TB", 1, "C", false, 0, "")
	doc.Ln(4)

	rows := [][2]string{
		{"Request ID", s.RequestID},
		{"Student", s.StudentName},
		{"Document", s.DocumentName},
		{"Pickup date", s.Pickup},
		{"Time slot", s.TimeSlot},
		{"Issued", s.IssuedAt},
		{"Valid until", s.ExpiresAt},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		doc.SetFont("Helvetica", "B", 10)
		doc.CellFormat(32, 6, row[0]+":", "", 0, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 10)
		doc.CellFormat(contentW-32, 6, tr(row[1]), "", 1, "L", false, 0, "")
	}

	doc.Ln(4)
	doc.SetFont("Courier", "B", 16)
	doc.CellFormat(contentW, 10, s.Code, "1", 1, "C", false, 0, "")

	if len(s.QRPNG) > 0 {
		opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		doc.RegisterImageOptionsReader(qrImageName, opts, bytes.NewReader(s.QRPNG))
		size := 55.0
		doc.ImageOptions(qrImageName, (pageW-size)/2, doc.GetY()+4, size, size, false, opts, 0, "")
		doc.SetY(doc.GetY() + size + 8)
	}

	doc.SetFont("Helvetica", "", 8)
	office := s.School.Office
	if s.School.OfficeHours != "" {
		office += " (" + s.School.OfficeHours + ")"
	}
	doc.MultiCell(contentW, 4, tr("Present this stub and a valid ID at the "+office+". The stub is personal and may be used once."), "", "C", false)
	if s.School.ContactPhone != "" || s.School.ContactEmail != "" {
		doc.CellFormat(contentW, 4, tr(s.School.ContactPhone+"  "+s.School.ContactEmail), "", 1, "C", false, 0, "")
	}

	if err := doc.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

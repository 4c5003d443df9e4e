package report

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/mkvgate/internal/common"
	"example.com/mkvgate/internal/diag"
	"example.com/mkvgate/internal/validate"
)

const qrImageName = "digest-qr"

// SaveAcceptancePDF renders the given acceptance report into a PDF document.
// When the report carries a digest a QR code of it is placed next to the
// summary.
func SaveAcceptancePDF(rep Acceptance, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Validation Report", false)
	pdf.SetAuthor("mkvgate", false)
	pdf.SetCreator("mkvgate", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Validation Report")
	if err := addDigestQR(pdf, rep.Digest); err != nil {
		return err
	}
	addSummarySection(pdf, rep)
	addTracksSection(pdf, rep.Tracks)
	addFindingsSection(pdf, rep.Findings)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addDigestQR(pdf *gofpdf.Fpdf, digest string) error {
	if digest == "" {
		return nil
	}
	png, err := DigestToQR(digest, 256)
	if err != nil {
		return err
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(qrImageName, opts, bytes.NewReader(png))
	pdf.ImageOptions(qrImageName, 160, 15, 35, 35, false, opts, 0, "")
	return nil
}

func addSummarySection(pdf *gofpdf.Fpdf, rep Acceptance) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "File", value: emptyFallback(rep.File, "-")},
		{label: "Size", value: common.FormatBytes(rep.Size)},
		{label: "Profile", value: emptyFallback(rep.Profile, "-")},
		{label: "Created with", value: emptyFallback(rep.MuxingApp, "<unknown>") + " / " + emptyFallback(rep.WritingApp, "<unknown>")},
		{label: "Total Findings", value: strconv.Itoa(rep.Summary.Total)},
		{label: "Errors", value: strconv.Itoa(rep.Summary.Errors)},
		{label: "Warnings", value: strconv.Itoa(rep.Summary.Warnings)},
		{label: "Overall", value: passLabel(rep.Summary.Pass, rep.Fatal)},
		{label: "Generated", value: rep.Generated.Format(time.RFC3339)},
	}
	for _, item := range items {
		pdf.CellFormat(40, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(100, 6, item.value, "", 1, "L", false, 0, "")
	}
	if rep.Digest != "" {
		pdf.SetFont("Courier", "", 8)
		pdf.CellFormat(40, 5, "BLAKE3", "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, rep.Digest, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addTracksSection(pdf *gofpdf.Fpdf, tracks []validate.TrackSummary) {
	if len(tracks) == 0 {
		return
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Tracks")
	pdf.Ln(9)

	headers := []string{"Track", "Kind", "Codec", "Payload", "Bitrate"}
	widths := []float64{20, 25, 60, 40, 35}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, t := range tracks {
		values := []string{
			"#" + strconv.FormatUint(t.Number, 10),
			t.Kind,
			emptyFallback(t.CodecID, "-"),
			common.FormatBytes(t.DataLength),
			strconv.FormatInt(t.Bitrate, 10) + " bits/s",
		}
		renderTableRow(pdf, widths, values, 5)
	}
	pdf.Ln(4)
}

func addFindingsSection(pdf *gofpdf.Fpdf, findings []diag.Diagnostic) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Findings")
	pdf.Ln(9)

	if len(findings) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No findings recorded.", "", "L", false)
		return
	}

	for i, d := range findings {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.MultiCell(0, 5, strconv.Itoa(i+1)+". "+d.Id, "", "L", false)
		if msg := strings.TrimSpace(d.Message); msg != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, msg, "", "L", false)
		}
		pdf.Ln(2)
	}
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		pdf.MultiCell(widths[i], lineHeight, strings.Join(lines, "\n"), "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func passLabel(pass, fatal bool) string {
	switch {
	case fatal:
		return "FATAL"
	case pass:
		return "PASS"
	}
	return "FAIL"
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}

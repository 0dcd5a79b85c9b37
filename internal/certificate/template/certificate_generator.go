package template

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/utils"

	"github.com/signintech/gopdf"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	fontRegular = "cert-regular"
	fontBold    = "cert-bold"
)

type CertificateData struct {
	ParticipantName string
	EventTitle      string
	CertID          string
	TxHash          string
	IssuedAt        time.Time
	Mode            string
	// VerifyURL, when set, is embedded as a QR code.
	VerifyURL string
}

type CertificatePDFGenerator struct {
	fontPath string
}

// NewCertificatePDFGenerator uses the TTF at fontPath when it exists and the Go fonts otherwise.
func NewCertificatePDFGenerator(fontPath string) *CertificatePDFGenerator {
	return &CertificatePDFGenerator{fontPath: fontPath}
}

// FileName is the artifact name pinned for a certificate: {safeName}_{safeEvent}.pdf.
func FileName(participantName, eventTitle string) string {
	name := utils.SafeFileName(participantName)
	if name == "" {
		name = "participant"
	}
	event := utils.SafeFileName(eventTitle)
	if event == "" {
		event = "event"
	}
	return name + "_" + event + ".pdf"
}

func (g *CertificatePDFGenerator) loadFonts(pdf *gopdf.GoPdf) error {
	if g.fontPath != "" {
		if _, err := os.Stat(g.fontPath); err == nil {
			if err := pdf.AddTTFFont(fontRegular, g.fontPath); err != nil {
				return fmt.Errorf("failed to load font: %w", err)
			}
			return pdf.AddTTFFont(fontBold, g.fontPath)
		}
	}
	if err := pdf.AddTTFFontData(fontRegular, goregular.TTF); err != nil {
		return fmt.Errorf("failed to load font: %w", err)
	}
	return pdf.AddTTFFontData(fontBold, gobold.TTF)
}

func (g *CertificatePDFGenerator) Generate(d CertificateData) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4Landscape})
	pdf.AddPage()

	if err := g.loadFonts(pdf); err != nil {
		return nil, err
	}

	page := gopdf.PageSizeA4Landscape
	w, h := page.W, page.H

	// Background and frame
	pdf.SetFillColor(250, 250, 250)
	pdf.RectFromUpperLeftWithStyle(0, 0, w, h, "F")
	pdf.SetStrokeColor(79, 70, 229)
	pdf.SetLineWidth(3)
	pdf.RectFromUpperLeftWithStyle(20, 20, w-40, h-40, "D")

	if err := centered(pdf, w, 90, fontBold, 32, [3]uint8{17, 24, 39}, "Certificate of Participation"); err != nil {
		return nil, err
	}
	if err := centered(pdf, w, 150, fontRegular, 18, [3]uint8{55, 65, 81}, "This is to certify that"); err != nil {
		return nil, err
	}
	if err := centered(pdf, w, 190, fontBold, 30, [3]uint8{79, 70, 229}, d.ParticipantName); err != nil {
		return nil, err
	}

	y, err := wrapped(pdf, w, 250, fontRegular, 18, [3]uint8{17, 24, 39},
		fmt.Sprintf("has successfully participated in the event \"%s\"", d.EventTitle))
	if err != nil {
		return nil, err
	}

	details := []string{
		"Certificate ID: " + d.CertID,
		"Transaction: " + d.TxHash,
		"Issued on: " + d.IssuedAt.Format("January 2, 2006"),
	}
	if d.Mode != "" && d.Mode != "live" {
		details = append(details, "Issued in "+d.Mode+" mode")
	}
	y += 20
	for _, line := range details {
		if err := centered(pdf, w, y, fontRegular, 12, [3]uint8{107, 114, 128}, line); err != nil {
			return nil, err
		}
		y += 20
	}

	// Signature
	pdf.SetStrokeColor(17, 24, 39)
	pdf.SetLineWidth(1)
	pdf.Line(w/2-100, h-95, w/2+100, h-95)
	if err := centered(pdf, w, h-88, fontRegular, 14, [3]uint8{107, 114, 128}, "Authorized Signature"); err != nil {
		return nil, err
	}

	if d.VerifyURL != "" {
		if err := addQRCode(pdf, d.VerifyURL, w-130, h-130); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func centered(pdf *gopdf.GoPdf, pageW, y float64, font string, size float64, rgb [3]uint8, text string) error {
	if err := pdf.SetFont(font, "", size); err != nil {
		return fmt.Errorf("failed to set font: %w", err)
	}
	pdf.SetTextColor(rgb[0], rgb[1], rgb[2])
	pdf.SetXY(0, y)
	return pdf.CellWithOption(&gopdf.Rect{W: pageW, H: size + 4}, text, gopdf.CellOption{Align: gopdf.Center})
}

// wrapped centers text over as many lines as it needs and returns the y below the last line.
func wrapped(pdf *gopdf.GoPdf, pageW, y float64, font string, size float64, rgb [3]uint8, text string) (float64, error) {
	if err := pdf.SetFont(font, "", size); err != nil {
		return y, fmt.Errorf("failed to set font: %w", err)
	}
	lines, err := pdf.SplitText(text, pageW-100)
	if err != nil {
		return y, err
	}
	for _, line := range lines {
		if err := centered(pdf, pageW, y, font, size, rgb, line); err != nil {
			return y, err
		}
		y += size + 8
	}
	return y, nil
}

func addQRCode(pdf *gopdf.GoPdf, content string, x, y float64) error {
	raw, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("failed to encode QR code: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to decode QR image: %w", err)
	}
	if err := pdf.ImageFrom(img, x, y, &gopdf.Rect{W: 90, H: 90}); err != nil {
		return fmt.Errorf("failed to place QR code: %w", err)
	}
	return nil
}

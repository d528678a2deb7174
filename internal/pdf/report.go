package pdf

import (
	"bytes"
	"fmt"

	"github.com/ungeskriptet/samsung-grab/internal/domain"

	"github.com/jung-kurt/gofpdf"
)

// BuildTasksReport renders pending tasks as a single A4 document, one block
// per task in the order given.
func BuildTasksReport(tasks []domain.Task, lookupPrefix string) ([]byte, error) {
	p := gofpdf.New("P", "mm", "A4", "")
	p.SetTitle("samsung-grab tasks", true)
	p.AddPage()
	p.SetFont("Arial", "B", 14)

	p.Cell(40, 10, "Pending tasks")
	p.Ln(12)
	p.SetFont("Arial", "", 11)

	if len(tasks) == 0 {
		p.Cell(40, 8, "No tasks available")
		p.Ln(8)
	}

	for _, t := range tasks {
		p.SetFont("Arial", "B", 11)
		p.Cell(40, 8, fmt.Sprintf("Task %s", t.TaskID))
		p.Ln(7)
		p.SetFont("Arial", "", 10)
		for _, line := range []string{
			"Version: " + t.Version,
			"Filename: " + t.Filename,
			"Size: " + t.FilesizeText,
		} {
			p.Cell(40, 6, line)
			p.Ln(6)
		}
		link := t.LookupURL(lookupPrefix)
		p.SetTextColor(0, 0, 200)
		p.CellFormat(0, 6, link, "", 1, "L", false, 0, link)
		p.SetTextColor(0, 0, 0)
		p.Ln(4)
	}

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

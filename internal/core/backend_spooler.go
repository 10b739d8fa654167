package core

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// SpoolerBackend renders a job as a PDF ticket and hands it to the system
// print spooler. The printer's address field names the spooler queue.
type SpoolerBackend struct {
	command string
	now     func() time.Time

	lookPath func(file string) (string, error)
	runCmd   func(ctx context.Context, name string, args ...string) error
}

func NewSpoolerBackend(command string) *SpoolerBackend {
	if command == "" {
		command = "lp"
	}
	return &SpoolerBackend{
		command:  command,
		now:      time.Now,
		lookPath: exec.LookPath,
		runCmd: func(ctx context.Context, name string, args ...string) error {
			out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
			if err != nil {
				return fmt.Errorf("%s: %s", err, string(out))
			}
			return nil
		},
	}
}

func (b *SpoolerBackend) Name() string { return "spooler" }

func (b *SpoolerBackend) Print(ctx context.Context, job *Job, printer *Printer) error {
	helper, err := b.lookPath(b.command)
	if err != nil {
		return fmt.Errorf("%w: %s not found in PATH", ErrSpoolerUnavailable, b.command)
	}

	path, err := b.renderPDF(job)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	if err := b.runCmd(ctx, helper, "-d", printer.Address, path); err != nil {
		return fmt.Errorf("failed to submit job to spooler queue %s: %w", printer.Address, err)
	}
	return nil
}

func (b *SpoolerBackend) renderPDF(job *Job) (string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Courier", "B", 16)
	pdf.CellFormat(0, 10, TicketTitle(job), "", 1, "C", false, 0, "")

	pdf.SetFont("Courier", "", 11)
	pdf.CellFormat(0, 6, b.now().Format("15:04:05 02.01.2006"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Courier", "B", 12)
	for _, item := range job.Items {
		pdf.CellFormat(150, 7, item.Name, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, fmt.Sprintf("x%d", item.Quantity), "", 1, "R", false, 0, "")
		if item.Notes != "" {
			pdf.SetFont("Courier", "I", 10)
			pdf.CellFormat(0, 5, "  * "+item.Notes, "", 1, "L", false, 0, "")
			pdf.SetFont("Courier", "B", 12)
		}
	}

	path := filepath.Join(os.TempDir(), fmt.Sprintf("printrouter-%s.pdf", job.ID))
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("failed to render ticket pdf: %w", err)
	}
	return path, nil
}

package core

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// ESC/POS control sequences understood by common thermal receipt printers.
const (
	escInit         = "\x1b@"
	escAlignCenter  = "\x1ba\x01"
	escAlignLeft    = "\x1ba\x00"
	escBoldOn       = "\x1bE\x01"
	escBoldOff      = "\x1bE\x00"
	escDoubleHeight = "\x1d!\x01"
	escSizeReset    = "\x1d!\x00"
	escCut          = "\x1dV\x41\x10"
)

// ticketWidth is the column count of a standard 80mm thermal printer.
const ticketWidth = 32

// TicketTitle picks the header line for a kitchen ticket: the table when the
// order carries one, otherwise the order id.
func TicketTitle(job *Job) string {
	if job.Metadata != nil {
		if table, ok := job.Metadata["tableNumber"].(string); ok && table != "" {
			return "TABLE " + table
		}
	}
	return "ORDER " + job.OrderID
}

// BuildTicket renders a job as an ESC/POS kitchen ticket. The payload is
// transport-agnostic: the network and serial backends both write it verbatim.
func BuildTicket(job *Job, now time.Time) []byte {
	var buf bytes.Buffer

	buf.WriteString(escInit)

	buf.WriteString(escAlignCenter)
	buf.WriteString(escBoldOn)
	buf.WriteString(escDoubleHeight)
	buf.WriteString(TicketTitle(job) + "\n")
	buf.WriteString(escSizeReset)
	buf.WriteString(escBoldOff)

	buf.WriteString(now.Format("15:04:05 02.01.2006") + "\n")
	if guests, ok := job.Metadata["guestCount"].(float64); ok && guests > 0 {
		buf.WriteString(fmt.Sprintf("Guests: %d\n", int(guests)))
	}

	buf.WriteString(escAlignLeft)
	buf.WriteString(strings.Repeat("-", ticketWidth) + "\n")

	for _, item := range job.Items {
		buf.WriteString(ticketLine(item.Name, fmt.Sprintf("x%d", item.Quantity)))
		if item.Notes != "" {
			buf.WriteString("  * " + item.Notes + "\n")
		}
	}

	buf.WriteString(strings.Repeat("-", ticketWidth) + "\n")
	buf.WriteString("\n\n")
	buf.WriteString(escCut)

	return buf.Bytes()
}

// ticketLine lays out a name column and a right-justified quantity column.
// Long names are truncated rather than wrapped so quantities stay aligned.
// Truncation and padding count runes, never bytes, so multi-byte names are
// cut on character boundaries.
func ticketLine(name, qty string) string {
	nameRunes := []rune(name)
	maxName := ticketWidth - len(qty) - 1
	if maxName < 1 {
		maxName = 1
	}
	if len(nameRunes) > maxName {
		nameRunes = nameRunes[:maxName]
	}
	pad := ticketWidth - len(nameRunes) - len(qty)
	if pad < 1 {
		pad = 1
	}
	return string(nameRunes) + strings.Repeat(" ", pad) + qty + "\n"
}

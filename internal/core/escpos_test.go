package core

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTicketTitle(t *testing.T) {
	job := newJob("j1")
	require.Equal(t, "ORDER o1", TicketTitle(job))

	job.Metadata["tableNumber"] = "12"
	require.Equal(t, "TABLE 12", TicketTitle(job))
}

func TestBuildTicketStructure(t *testing.T) {
	job := newJob("j1")
	job.Metadata["tableNumber"] = "7"
	job.Items = []OrderItem{
		{Name: "Burger", Quantity: 2},
		{Name: "Fries", Quantity: 1, Notes: "no salt"},
	}

	ticket := string(BuildTicket(job, time.Date(2026, 8, 27, 18, 30, 0, 0, time.UTC)))

	require.True(t, strings.HasPrefix(ticket, escInit))
	require.True(t, strings.HasSuffix(ticket, escCut))
	require.Contains(t, ticket, "TABLE 7")
	require.Contains(t, ticket, "18:30:00 27.08.2026")
	require.Contains(t, ticket, "x2")
	require.Contains(t, ticket, "  * no salt")
}

func TestTicketLineAlignment(t *testing.T) {
	line := ticketLine("Burger", "x2")
	require.Equal(t, ticketWidth+1, len(line))
	require.True(t, strings.HasSuffix(line, "x2\n"))

	// Oversized names are truncated so the quantity column survives.
	long := ticketLine(strings.Repeat("A", 60), "x10")
	require.Equal(t, ticketWidth+1, len(long))
	require.True(t, strings.HasSuffix(long, "x10\n"))
}

func TestTicketLineMultiByteNames(t *testing.T) {
	// Multi-byte names stay valid UTF-8 and keep the column count.
	line := ticketLine("Crème brûlée", "x1")
	require.True(t, utf8.ValidString(line))
	require.Equal(t, ticketWidth+1, utf8.RuneCountInString(line))
	require.Contains(t, line, "Crème brûlée")

	long := ticketLine(strings.Repeat("é", 60), "x2")
	require.True(t, utf8.ValidString(long))
	require.Equal(t, ticketWidth+1, utf8.RuneCountInString(long))
	require.True(t, strings.HasSuffix(long, "x2\n"))
}

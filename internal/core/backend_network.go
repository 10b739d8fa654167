package core

import (
	"context"
	"fmt"
	"net"
	"time"
)

// NetworkBackend talks raw ESC/POS to a printer's TCP port, usually 9100.
type NetworkBackend struct {
	timeout time.Duration
	now     func() time.Time
}

func NewNetworkBackend(timeout time.Duration) *NetworkBackend {
	return &NetworkBackend{
		timeout: timeout,
		now:     time.Now,
	}
}

func (b *NetworkBackend) Name() string { return "network" }

func (b *NetworkBackend) Print(ctx context.Context, job *Job, printer *Printer) error {
	addr := net.JoinHostPort(printer.Address, fmt.Sprintf("%d", printer.Port))

	dialer := net.Dialer{Timeout: b.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to printer at %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Now().Add(b.timeout))
	}

	payload := BuildTicket(job, b.now())
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("failed to send data to printer at %s: %w", addr, err)
	}
	return nil
}

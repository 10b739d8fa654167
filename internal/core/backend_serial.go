package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

var serialPortPattern = regexp.MustCompile(`(?i)(ttyUSB|ttyACM|ttyS|rfcomm|cu\.|COM\d)`)

type serialPortInfo struct {
	Name    string
	Product string
}

// SerialBackend drives printers attached over a serial or Bluetooth-serial
// link. When the printer record does not pin a device path the backend
// discovers one, preferring Bluetooth adapters over plain UARTs.
type SerialBackend struct {
	baudRate int
	now      func() time.Time

	// listPorts and openPort are seams over the serial library so tests run
	// on machines without hardware.
	listPorts func() ([]serialPortInfo, error)
	openPort  func(name string, baudRate int) (serial.Port, error)
}

func NewSerialBackend(baudRate int) *SerialBackend {
	if baudRate <= 0 {
		baudRate = 9600
	}
	return &SerialBackend{
		baudRate:  baudRate,
		now:       time.Now,
		listPorts: enumeratePorts,
		openPort: func(name string, baudRate int) (serial.Port, error) {
			return serial.Open(name, &serial.Mode{BaudRate: baudRate})
		},
	}
}

func (b *SerialBackend) Name() string { return "serial" }

func (b *SerialBackend) Print(ctx context.Context, job *Job, printer *Printer) error {
	device := printer.Address
	if device == "" {
		found, err := b.discoverPort()
		if err != nil {
			return err
		}
		device = found
	}

	port, err := b.openPort(device, b.baudRate)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", device, err)
	}

	// Closing the port from the watcher unblocks a stuck Write.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			port.Close()
		case <-watchDone:
		}
	}()
	defer port.Close()

	payload := BuildTicket(job, b.now())
	if _, err := port.Write(payload); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to write to serial port %s: %w", device, err)
	}
	if err := port.Drain(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to flush serial port %s: %w", device, err)
	}
	return nil
}

// discoverPort scans attached serial devices. Bluetooth adapters win because
// most mobile receipt printers pair over SPP; anything matching a known
// serial device naming scheme is the fallback.
func (b *SerialBackend) discoverPort() (string, error) {
	ports, err := b.listPorts()
	if err != nil {
		return "", fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	for _, p := range ports {
		if strings.Contains(strings.ToLower(p.Name), "bluetooth") ||
			strings.Contains(strings.ToLower(p.Product), "bluetooth") {
			return p.Name, nil
		}
	}
	for _, p := range ports {
		if serialPortPattern.MatchString(p.Name) {
			return p.Name, nil
		}
	}
	return "", ErrNoSerialPort
}

func enumeratePorts() ([]serialPortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	infos := make([]serialPortInfo, 0, len(details))
	for _, d := range details {
		infos = append(infos, serialPortInfo{Name: d.Name, Product: d.Product})
	}
	return infos, nil
}

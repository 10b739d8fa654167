package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSerialDiscoverPrefersBluetooth(t *testing.T) {
	b := NewSerialBackend(9600)
	b.listPorts = func() ([]serialPortInfo, error) {
		return []serialPortInfo{
			{Name: "/dev/ttyUSB0", Product: "USB-Serial Controller"},
			{Name: "/dev/rfcomm0", Product: "Bluetooth Serial Port"},
		}, nil
	}

	port, err := b.discoverPort()
	require.NoError(t, err)
	require.Equal(t, "/dev/rfcomm0", port)
}

func TestSerialDiscoverFallsBackToPattern(t *testing.T) {
	b := NewSerialBackend(9600)
	b.listPorts = func() ([]serialPortInfo, error) {
		return []serialPortInfo{
			{Name: "/dev/random-device", Product: "Something"},
			{Name: "/dev/ttyACM1", Product: "CDC ACM"},
		}, nil
	}

	port, err := b.discoverPort()
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyACM1", port)
}

func TestSerialDiscoverNoPort(t *testing.T) {
	b := NewSerialBackend(9600)
	b.listPorts = func() ([]serialPortInfo, error) {
		return nil, nil
	}

	_, err := b.discoverPort()
	require.ErrorIs(t, err, ErrNoSerialPort)
}

func TestSpoolerMissingHelper(t *testing.T) {
	b := NewSpoolerBackend("lp")
	b.lookPath = func(file string) (string, error) {
		return "", errors.New("executable file not found in $PATH")
	}

	job := newJob("j1")
	printer := &Printer{ID: "p1", Name: "Office", Address: "office-queue", Transport: "spooler"}

	err := b.Print(context.Background(), job, printer)
	require.ErrorIs(t, err, ErrSpoolerUnavailable)
}

func TestSpoolerSubmitsRenderedTicket(t *testing.T) {
	b := NewSpoolerBackend("lp")
	b.lookPath = func(file string) (string, error) {
		return "/usr/bin/lp", nil
	}

	var gotName string
	var gotArgs []string
	b.runCmd = func(ctx context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		return nil
	}

	job := newJob("j1")
	job.Items = []OrderItem{{Name: "Burger", Quantity: 1, Notes: "rare"}}
	printer := &Printer{ID: "p1", Name: "Office", Address: "office-queue", Transport: "spooler"}

	require.NoError(t, b.Print(context.Background(), job, printer))
	require.Equal(t, "/usr/bin/lp", gotName)
	require.Len(t, gotArgs, 3)
	require.Equal(t, "-d", gotArgs[0])
	require.Equal(t, "office-queue", gotArgs[1])
	require.Contains(t, gotArgs[2], "printrouter-j1.pdf")
}

type alwaysOutcome bool

func (o alwaysOutcome) ShouldSucceed() bool { return bool(o) }

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestSimulatedBackendDeterministic(t *testing.T) {
	job := newJob("j1")
	printer := &Printer{ID: "p1", Name: "Sim"}

	succeed := NewSimulatedBackend(alwaysOutcome(true), noSleep)
	require.NoError(t, succeed.Print(context.Background(), job, printer))

	fail := NewSimulatedBackend(alwaysOutcome(false), noSleep)
	require.EqualError(t, fail.Print(context.Background(), job, printer), "simulated print failure")
}

func TestSimulatedBackendFailureRate(t *testing.T) {
	job := newJob("j1")
	printer := &Printer{ID: "p1", Name: "Sim"}
	b := NewSimulatedBackend(NewRandomOutcome(1), noSleep)

	failures := 0
	for i := 0; i < 1000; i++ {
		if err := b.Print(context.Background(), job, printer); err != nil {
			failures++
		}
	}

	// Roughly one attempt in ten fails.
	require.Greater(t, failures, 50)
	require.Less(t, failures, 150)
}

func TestSimulatedBackendHonorsContext(t *testing.T) {
	job := newJob("j1")
	printer := &Printer{ID: "p1", Name: "Sim"}
	b := NewSimulatedBackend(alwaysOutcome(true), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Print(ctx, job, printer)
	require.ErrorIs(t, err, context.Canceled)
}

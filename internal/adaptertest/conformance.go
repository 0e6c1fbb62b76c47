// Package adaptertest provides driver-agnostic conformance testing for peripherals.
package adaptertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hit-tracker/hdm/internal/adapter"
)

// Characteristics names the service and characteristic the suite exercises.
type Characteristics struct {
	Service  string
	Writable string
}

// ConformanceResult represents the result of a conformance test.
type ConformanceResult struct {
	TestName string
	Passed   bool
	Error    string
	Duration time.Duration
}

// ConformanceReport represents the complete conformance test report.
type ConformanceReport struct {
	TotalTests    int
	PassedTests   int
	FailedTests   int
	Results       []ConformanceResult
	OverallPassed bool
	Duration      time.Duration
}

type step func(ctx context.Context, p adapter.Peripheral, chars Characteristics) error

// RunConformance runs the complete conformance suite against fresh
// peripherals produced by newPeripheral.
func RunConformance(t *testing.T, newPeripheral func() adapter.Peripheral, chars Characteristics) {
	t.Helper()
	startTime := time.Now()
	report := &ConformanceReport{OverallPassed: true}

	cases := []struct {
		name string
		run  step
	}{
		{"Connect_Disconnect", connectDisconnect},
		{"Connect_Idempotent", connectTwice},
		{"Disconnect_WithoutConnect", disconnectWithoutConnect},
		{"Write_AfterDiscover", writeAfterDiscover},
		{"Write_WithoutConnect_Fails", writeWithoutConnect},
		{"Reconnect_AfterDisconnect", reconnect},
		{"Timing_NoSleeps", noSleeps},
	}

	for _, tc := range cases {
		result := ConformanceResult{TestName: tc.name}
		start := time.Now()
		err := tc.run(context.Background(), newPeripheral(), chars)
		result.Duration = time.Since(start)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Passed = true
		}
		report.addResult(result)
	}

	report.Duration = time.Since(startTime)
	printConformanceReport(t, report)

	if !report.OverallPassed {
		t.Fatalf("Peripheral conformance test failed: %d/%d tests passed", report.PassedTests, report.TotalTests)
	}
}

func connectDisconnect(ctx context.Context, p adapter.Peripheral, _ Characteristics) error {
	if err := p.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := p.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

func connectTwice(ctx context.Context, p adapter.Peripheral, _ Characteristics) error {
	if err := p.Connect(ctx); err != nil {
		return fmt.Errorf("first connect: %w", err)
	}
	if err := p.Connect(ctx); err != nil {
		return fmt.Errorf("second connect: %w", err)
	}
	return p.Disconnect(ctx)
}

func disconnectWithoutConnect(ctx context.Context, p adapter.Peripheral, _ Characteristics) error {
	return p.Disconnect(ctx)
}

func writeAfterDiscover(ctx context.Context, p adapter.Peripheral, chars Characteristics) error {
	if err := p.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer p.Disconnect(ctx)

	if err := p.DiscoverServiceAndCharacteristic(ctx, chars.Service, chars.Writable); err != nil {
		return fmt.Errorf("discover: %w", err)
	}
	if err := p.Write(ctx, chars.Writable, []byte{0x00}); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func writeWithoutConnect(ctx context.Context, p adapter.Peripheral, chars Characteristics) error {
	err := p.Write(ctx, chars.Writable, []byte{0x00})
	if err == nil {
		return errors.New("write on a closed peripheral succeeded")
	}
	var radioErr *adapter.RadioError
	if !errors.As(adapter.NormalizeDriverError("write", "", err), &radioErr) {
		return fmt.Errorf("write error %v did not normalize", err)
	}
	return nil
}

func reconnect(ctx context.Context, p adapter.Peripheral, chars Characteristics) error {
	if err := writeAfterDiscover(ctx, p, chars); err != nil {
		return fmt.Errorf("first session: %w", err)
	}
	if err := writeAfterDiscover(ctx, p, chars); err != nil {
		return fmt.Errorf("second session: %w", err)
	}
	return nil
}

func noSleeps(_ context.Context, p adapter.Peripheral, _ Characteristics) error {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Connect(ctx)
	elapsed := time.Since(start)
	_ = p.Disconnect(context.Background())

	if elapsed > 50*time.Millisecond {
		return fmt.Errorf("connect took too long: %v", elapsed)
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("unexpected error: %w", err)
	}
	return nil
}

func (r *ConformanceReport) addResult(result ConformanceResult) {
	r.TotalTests++
	if result.Passed {
		r.PassedTests++
	} else {
		r.FailedTests++
		r.OverallPassed = false
	}
	r.Results = append(r.Results, result)
}

func printConformanceReport(t *testing.T, report *ConformanceReport) {
	t.Logf("\n%s", strings.Repeat("=", 80))
	t.Logf("PERIPHERAL CONFORMANCE REPORT")
	t.Logf("%s", strings.Repeat("=", 80))
	t.Logf("Total Tests: %d", report.TotalTests)
	t.Logf("Passed: %d", report.PassedTests)
	t.Logf("Failed: %d", report.FailedTests)
	t.Logf("Overall: %s", map[bool]string{true: "PASS", false: "FAIL"}[report.OverallPassed])
	t.Logf("Duration: %v", report.Duration)
	t.Logf("%s", strings.Repeat("-", 80))
	t.Logf("%-30s %-8s %-12s %-s", "TEST NAME", "RESULT", "DURATION", "DETAILS")

	for _, result := range report.Results {
		status := "PASS"
		if !result.Passed {
			status = "FAIL"
		}
		t.Logf("%-30s %-8s %-12s %-s", result.TestName, status, result.Duration.String(), result.Error)
	}

	t.Logf("%s", strings.Repeat("=", 80))
}

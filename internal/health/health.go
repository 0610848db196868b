// Package health runs setup and integrity checks for textreplay.
//
// Checks run concurrently, each with its own timeout. A failing critical
// check makes the overall status unhealthy; a failing optional check only
// degrades it.
package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is healthy.
	StatusHealthy Status = "healthy"
	// StatusDegraded indicates the component is degraded but functional.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy indicates the component is unhealthy.
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a health check.
type CheckResult struct {
	Name     string         `json:"name"`
	Status   Status         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Duration time.Duration  `json:"duration_ns"`
	Error    string         `json:"error,omitempty"`
}

// Check is a function that performs a health check.
type Check func(ctx context.Context) CheckResult

// Component represents a health-checkable component.
type Component struct {
	Name     string
	Critical bool // If true, failure makes overall status unhealthy
	Check    Check
	Timeout  time.Duration
}

// Checker manages health checks.
type Checker struct {
	mu         sync.Mutex
	components []*Component
}

// NewChecker creates a new Checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Register registers a health check component.
func (c *Checker) Register(component *Component) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if component.Timeout == 0 {
		component.Timeout = 5 * time.Second
	}
	c.components = append(c.components, component)
}

// RegisterFunc registers a simple health check function.
func (c *Checker) RegisterFunc(name string, critical bool, check Check) {
	c.Register(&Component{
		Name:     name,
		Critical: critical,
		Check:    check,
	})
}

// Report is the outcome of one Run.
type Report struct {
	Status  Status        `json:"status"`
	Results []CheckResult `json:"results"`
}

// Run executes every registered check and aggregates the results. Results
// are sorted by component name.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.Lock()
	components := append([]*Component(nil), c.components...)
	c.mu.Unlock()

	results := make([]CheckResult, len(components))
	var wg sync.WaitGroup

	for i, comp := range components {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = runCheck(ctx, comp)
		}()
	}
	wg.Wait()

	status := StatusHealthy
	for i, r := range results {
		switch r.Status {
		case StatusHealthy:
		case StatusDegraded:
			if status == StatusHealthy {
				status = StatusDegraded
			}
		default:
			if components[i].Critical {
				status = StatusUnhealthy
			} else if status == StatusHealthy {
				status = StatusDegraded
			}
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return Report{Status: status, Results: results}
}

func runCheck(ctx context.Context, comp *Component) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, comp.Timeout)
	defer cancel()

	start := time.Now()
	var result CheckResult

	// Run check with panic recovery
	done := make(chan CheckResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- CheckResult{
					Status:  StatusUnhealthy,
					Message: "check panicked",
					Error:   fmt.Sprintf("%v", r),
				}
			}
		}()
		done <- comp.Check(checkCtx)
	}()

	select {
	case result = <-done:
	case <-checkCtx.Done():
		result = CheckResult{
			Status:  StatusUnhealthy,
			Message: "check timed out",
			Error:   checkCtx.Err().Error(),
		}
	}

	result.Name = comp.Name
	result.Duration = time.Since(start)
	return result
}

// Common health checks.

// CustomCheck creates a check from a simple function.
func CustomCheck(ok string, fn func(ctx context.Context) error) Check {
	return func(ctx context.Context) CheckResult {
		if err := fn(ctx); err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: "check failed",
				Error:   err.Error(),
			}
		}
		return CheckResult{
			Status:  StatusHealthy,
			Message: ok,
		}
	}
}

// FileReadableCheck checks that path is a regular file that can be opened.
func FileReadableCheck(path string) Check {
	return func(ctx context.Context) CheckResult {
		f, err := os.Open(path)
		if err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: "file not readable",
				Error:   err.Error(),
			}
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: "file not readable",
				Error:   err.Error(),
			}
		}
		if info.IsDir() {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: "path is a directory",
			}
		}
		return CheckResult{
			Status:  StatusHealthy,
			Message: "file readable",
			Details: map[string]any{"path": path, "size": info.Size()},
		}
	}
}

// DirWritableCheck checks that files can be created in dir, creating it if
// needed.
func DirWritableCheck(dir string) Check {
	return func(ctx context.Context) CheckResult {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: "directory cannot be created",
				Error:   err.Error(),
			}
		}
		f, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: "directory not writable",
				Error:   err.Error(),
			}
		}
		name := f.Name()
		f.Close()
		os.Remove(name)

		return CheckResult{
			Status:  StatusHealthy,
			Message: "directory writable",
			Details: map[string]any{"path": filepath.Clean(dir)},
		}
	}
}

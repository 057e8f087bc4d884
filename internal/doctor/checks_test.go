package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status   CheckStatus
		expected string
	}{
		{StatusPass, "pass"},
		{StatusWarn, "warn"},
		{StatusFail, "fail"},
		{CheckStatus(99), "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			if got := tc.status.String(); got != tc.expected {
				t.Errorf("got %q, want %q", got, tc.expected)
			}
		})
	}
}

func TestCheckResult_JSON(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "x", Category: "CONFIG", Status: StatusWarn})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"status":"warn"`) {
		t.Errorf("status not rendered as text: %s", data)
	}
}

func TestCheckStatus_TextRoundTrip(t *testing.T) {
	for _, status := range []CheckStatus{StatusPass, StatusWarn, StatusFail} {
		t.Run(status.String(), func(t *testing.T) {
			data, err := json.Marshal(CheckResult{Name: "x", Status: status})
			if err != nil {
				t.Fatal(err)
			}
			var got CheckResult
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("decode %s: %v", data, err)
			}
			if got.Status != status {
				t.Errorf("got %v, want %v", got.Status, status)
			}
		})
	}

	var r CheckResult
	if err := json.Unmarshal([]byte(`{"status":"maybe"}`), &r); err == nil {
		t.Error("expected error for unknown status")
	}
}

// mockCheck is a test implementation of Check.
type mockCheck struct {
	name     string
	category string
	result   CheckResult
	fixErr   error
	fixCalls int
}

func (m *mockCheck) Name() string                    { return m.name }
func (m *mockCheck) Category() string                { return m.category }
func (m *mockCheck) Run(context.Context) CheckResult { return m.result }
func (m *mockCheck) Fix(context.Context) error {
	m.fixCalls++
	return m.fixErr
}

func TestRunAll(t *testing.T) {
	checks := []Check{
		&mockCheck{
			name:     "check1",
			category: "TEST",
			result:   CheckResult{Name: "check1", Status: StatusPass, Message: "OK"},
		},
		&mockCheck{
			name:     "check2",
			category: "OTHER",
			result:   CheckResult{Status: StatusFail, Message: "Failed"},
		},
	}

	results := RunAll(context.Background(), checks)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != StatusPass || results[0].Category != "TEST" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[1].Status != StatusFail {
		t.Errorf("expected second check to fail")
	}
	if results[1].Name != "check2" || results[1].Category != "OTHER" {
		t.Errorf("name and category not filled in: %+v", results[1])
	}
}

func TestFixAll(t *testing.T) {
	pass := &mockCheck{name: "pass", result: CheckResult{Status: StatusPass, Fixable: true}}
	manual := &mockCheck{name: "manual", result: CheckResult{Status: StatusFail}}
	fixable := &mockCheck{name: "fixable", result: CheckResult{Status: StatusWarn, Fixable: true}}
	checks := []Check{pass, manual, fixable}

	fixed, err := FixAll(context.Background(), checks, RunAll(context.Background(), checks))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fixed) != 1 || fixed[0] != "fixable" {
		t.Errorf("fixed = %v, want [fixable]", fixed)
	}
	if pass.fixCalls != 0 || manual.fixCalls != 0 || fixable.fixCalls != 1 {
		t.Errorf("unexpected fix calls: %d %d %d", pass.fixCalls, manual.fixCalls, fixable.fixCalls)
	}

	fixable.fixErr = errors.New("boom")
	if _, err := FixAll(context.Background(), checks, RunAll(context.Background(), checks)); err == nil {
		t.Error("expected fix error")
	}
}

func TestGroupByCategory(t *testing.T) {
	results := []CheckResult{
		{Name: "c1", Category: "A"},
		{Name: "c2", Category: "B"},
		{Name: "c3", Category: "A"},
	}

	order, grouped := GroupByCategory(results)

	if len(order) != 2 || order[0] != "A" || order[1] != "B" {
		t.Errorf("order = %v, want [A B]", order)
	}
	if len(grouped["A"]) != 2 {
		t.Errorf("expected 2 results in category A, got %d", len(grouped["A"]))
	}
	if len(grouped["B"]) != 1 {
		t.Errorf("expected 1 result in category B, got %d", len(grouped["B"]))
	}
}

func TestCountByStatus(t *testing.T) {
	results := []CheckResult{
		{Status: StatusPass},
		{Status: StatusPass},
		{Status: StatusWarn},
		{Status: StatusFail},
	}

	counts := CountByStatus(results)

	if counts[StatusPass] != 2 {
		t.Errorf("expected 2 pass, got %d", counts[StatusPass])
	}
	if counts[StatusWarn] != 1 {
		t.Errorf("expected 1 warn, got %d", counts[StatusWarn])
	}
	if counts[StatusFail] != 1 {
		t.Errorf("expected 1 fail, got %d", counts[StatusFail])
	}
}

func TestHasFailures(t *testing.T) {
	tests := []struct {
		name     string
		results  []CheckResult
		expected bool
	}{
		{
			name:     "all pass",
			results:  []CheckResult{{Status: StatusPass}, {Status: StatusPass}},
			expected: false,
		},
		{
			name:     "with warn only",
			results:  []CheckResult{{Status: StatusPass}, {Status: StatusWarn}},
			expected: false,
		},
		{
			name:     "with fail",
			results:  []CheckResult{{Status: StatusPass}, {Status: StatusFail}},
			expected: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasFailures(tc.results); got != tc.expected {
				t.Errorf("HasFailures() = %v, want %v", got, tc.expected)
			}
		})
	}
}

func TestFixableCount(t *testing.T) {
	results := []CheckResult{
		{Status: StatusPass, Fixable: true},  // Pass, not counted
		{Status: StatusFail, Fixable: true},  // Counted
		{Status: StatusFail, Fixable: false}, // Not counted
		{Status: StatusWarn, Fixable: true},  // Counted
	}

	if got := FixableCount(results); got != 2 {
		t.Errorf("FixableCount() = %d, want 2", got)
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name     string
		results  []CheckResult
		expected string
	}{
		{"all pass", []CheckResult{{Status: StatusPass}}, "Everything looks good"},
		{"one issue", []CheckResult{{Status: StatusPass}, {Status: StatusWarn}}, "1 issue found"},
		{"two issues", []CheckResult{{Status: StatusFail}, {Status: StatusWarn}}, "2 issues found"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Summary(tc.results); got != tc.expected {
				t.Errorf("Summary() = %q, want %q", got, tc.expected)
			}
		})
	}
}

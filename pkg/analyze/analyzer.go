// Package analyze holds the must-gather analyzers: each one walks the bundle,
// builds its own view of the cluster state and emits classified issues. The
// policy throughout is to recover locally, keep going and aggregate; a file
// that fails to parse costs one warning, never the run.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"k8s.io/klog/v2"

	"github.com/openshift-netlab/netdiag/pkg/constants"
	"github.com/openshift-netlab/netdiag/pkg/mustgather"
)

// Severity classifies an issue. It is a typed field, not a prefix baked into
// the message, so formatters never have to pattern-match message text.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "critical":
		*s = SeverityCritical
	case "warning":
		*s = SeverityWarning
	case "info":
		*s = SeverityInfo
	default:
		return fmt.Errorf("unknown severity %q", str)
	}
	return nil
}

// Issue is one classified finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Node     string   `json:"node,omitempty"`
	Message  string   `json:"message"`
}

// Result is what an analyzer hands to the report formatters.
type Result struct {
	Title           string      `json:"title"`
	Issues          []Issue     `json:"issues"`
	Recommendations []string    `json:"recommendations,omitempty"`
	Detail          interface{} `json:"detail,omitempty"`
}

// Critical returns the critical issues in order.
func (r *Result) Critical() []Issue {
	return r.filter(SeverityCritical)
}

// Warnings returns the warning issues in order.
func (r *Result) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

func (r *Result) filter(severity Severity) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			out = append(out, issue)
		}
	}
	return out
}

type Analyzer interface {
	Title() string
	Analyze(bundle *mustgather.Bundle) (*Result, error)
}

// Run executes a single analyzer inside a tracing span. An analyzer error
// becomes a critical issue in the result rather than aborting the caller;
// the other analyzers of a run still get their chance.
func Run(ctx context.Context, bundle *mustgather.Bundle, analyzer Analyzer) *Result {
	_, span := otel.Tracer(constants.LIB_TRACER_NAME).Start(ctx, analyzer.Title())
	span.SetAttributes(attribute.String("type", reflect.TypeOf(analyzer).String()))
	defer span.End()

	result, err := analyzer.Analyze(bundle)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return &Result{
			Title: analyzer.Title(),
			Issues: []Issue{{
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("Analyzer failed: %v", err),
			}},
		}
	}

	if result == nil {
		result = &Result{Title: analyzer.Title()}
	}
	if len(result.Issues) == 0 {
		klog.V(1).Infof("analyzer %q found no issues", analyzer.Title())
	}
	return result
}

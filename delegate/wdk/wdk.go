// Package wdk gives the WDK query service the minimal concrete shape
// spec.md section 1 keeps out of scope beyond its request/response shapes:
// step creation and record-type discovery, plus the record-type inference
// rule from SPEC_FULL.md section 12.2, grounded on
// domain/strategy/compile.py's _resolve_strategy_record_type.
package wdk

import (
	"context"

	"github.com/veupathdb/strategy-delegate/delegate"
)

// CreateStepRequest mirrors the strategy_tools.create_step tool call shape
// from spec.md section 6.
type CreateStepRequest struct {
	SearchName         string
	Parameters         map[string]any
	RecordType         string
	PrimaryInputStepID string
	SecondaryInputStepID string
	Operator           string
	DisplayName        string
	GraphID            string

	// Colocation-only fields; set when Operator corresponds to
	// delegate.OpColocate. The WDK compiles COLOCATE as a GenesByLocation
	// transform wrapping the secondary input rather than a boolean operator
	// (SPEC_FULL.md section 12.3).
	Colocation *delegate.ColocationParams
}

// CreateStepResponse mirrors the result envelope from spec.md section 6.
type CreateStepResponse struct {
	OK          bool
	Code        string
	Message     string
	StepID      string
	DisplayName string
}

// Client is the WDK external interface the Combine Executor and the
// orchestrator's record-type inference rely on.
type Client interface {
	CreateStep(ctx context.Context, req CreateStepRequest) (CreateStepResponse, error)
	GetRecordTypesForSearch(ctx context.Context, searchName string) ([]string, error)
}

// ResolveStrategyRecordType intersects the candidate record types across
// every search name referenced in searchNames. Zero candidates after
// intersection is a WDK_ERROR ("no common record type"); more than one is a
// VALIDATION_ERROR listing the offending types, matching
// domain/strategy/compile.py's _resolve_strategy_record_type.
func ResolveStrategyRecordType(ctx context.Context, client Client, searchNames []string) (string, *delegate.ToolError) {
	if len(searchNames) == 0 {
		return "", delegate.New(delegate.CodeWDKError, "no searches to resolve a record type from")
	}

	var candidates map[string]struct{}
	for _, name := range searchNames {
		types, err := client.GetRecordTypesForSearch(ctx, name)
		if err != nil {
			return "", delegate.NewWithCause(delegate.CodeWDKError, "failed to resolve record types for search", err).
				WithField("searchName", name)
		}
		set := make(map[string]struct{}, len(types))
		for _, t := range types {
			set[t] = struct{}{}
		}
		if candidates == nil {
			candidates = set
			continue
		}
		for t := range candidates {
			if _, ok := set[t]; !ok {
				delete(candidates, t)
			}
		}
	}

	switch len(candidates) {
	case 0:
		return "", delegate.New(delegate.CodeWDKError, "no common record type across the compiled plan's searches")
	case 1:
		for t := range candidates {
			return t, nil
		}
	}

	types := make([]string, 0, len(candidates))
	for t := range candidates {
		types = append(types, t)
	}
	return "", delegate.New(delegate.CodeValidationError, "ambiguous record type across the compiled plan's searches").
		WithField("recordTypes", types)
}

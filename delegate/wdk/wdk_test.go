package wdk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veupathdb/strategy-delegate/delegate"
)

type recordTypeStub struct {
	byName map[string][]string
}

func (s *recordTypeStub) CreateStep(ctx context.Context, req CreateStepRequest) (CreateStepResponse, error) {
	return CreateStepResponse{}, nil
}

func (s *recordTypeStub) GetRecordTypesForSearch(ctx context.Context, searchName string) ([]string, error) {
	return s.byName[searchName], nil
}

func TestResolveStrategyRecordType_SingleCommonType(t *testing.T) {
	client := &recordTypeStub{byName: map[string][]string{
		"GenesByExpression": {"gene", "transcript"},
		"GenesByGOTerm":      {"gene"},
	}}
	got, err := ResolveStrategyRecordType(context.Background(), client, []string{"GenesByExpression", "GenesByGOTerm"})
	require.Nil(t, err)
	assert.Equal(t, "gene", got)
}

func TestResolveStrategyRecordType_NoCommonType(t *testing.T) {
	client := &recordTypeStub{byName: map[string][]string{
		"GenesByExpression": {"gene"},
		"SNPsByLocation":    {"snp"},
	}}
	_, err := ResolveStrategyRecordType(context.Background(), client, []string{"GenesByExpression", "SNPsByLocation"})
	require.NotNil(t, err)
	assert.Equal(t, delegate.CodeWDKError, err.Code)
}

func TestResolveStrategyRecordType_AmbiguousType(t *testing.T) {
	client := &recordTypeStub{byName: map[string][]string{
		"SearchA": {"gene", "transcript"},
	}}
	_, err := ResolveStrategyRecordType(context.Background(), client, []string{"SearchA"})
	require.NotNil(t, err)
	assert.Equal(t, delegate.CodeValidationError, err.Code)
}

func TestResolveStrategyRecordType_NoSearches(t *testing.T) {
	client := &recordTypeStub{}
	_, err := ResolveStrategyRecordType(context.Background(), client, nil)
	require.NotNil(t, err)
	assert.Equal(t, delegate.CodeWDKError, err.Code)
}

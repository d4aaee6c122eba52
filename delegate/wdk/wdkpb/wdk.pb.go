// Package wdkpb holds the WDK gRPC service's message and client shapes.
// These are hand-written in the style protoc-gen-go would emit, since no
// .proto/codegen step runs in this module; a real deployment would replace
// this file with generated code from a shared .proto definition.
package wdkpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ColocationParams mirrors delegate.ColocationParams on the wire.
type ColocationParams struct {
	Upstream   int32
	Downstream int32
	Strand     string
}

// CreateStepRequest is the CreateStep RPC's request message.
type CreateStepRequest struct {
	SearchName           string
	Parameters           *structpb.Struct
	RecordType           string
	PrimaryInputStepId   string
	SecondaryInputStepId string
	Operator             string
	DisplayName          string
	GraphId              string
	Colocation           *ColocationParams
}

// CreateStepResponse is the CreateStep RPC's response message.
type CreateStepResponse struct {
	Ok          bool
	Code        string
	Message     string
	StepId      string
	DisplayName string
}

// GetRecordTypesForSearchRequest is the GetRecordTypesForSearch RPC's
// request message.
type GetRecordTypesForSearchRequest struct {
	SearchName string
}

// GetRecordTypesForSearchResponse is the GetRecordTypesForSearch RPC's
// response message.
type GetRecordTypesForSearchResponse struct {
	RecordTypes []string
}

const (
	serviceName            = "wdk.v1.WDKService"
	methodCreateStep        = "/" + serviceName + "/CreateStep"
	methodRecordTypesSearch = "/" + serviceName + "/GetRecordTypesForSearch"
)

// WDKServiceClient is the gRPC client stub for the WDK query service.
type WDKServiceClient interface {
	CreateStep(ctx context.Context, req *CreateStepRequest, opts ...grpc.CallOption) (*CreateStepResponse, error)
	GetRecordTypesForSearch(ctx context.Context, req *GetRecordTypesForSearchRequest, opts ...grpc.CallOption) (*GetRecordTypesForSearchResponse, error)
}

type wdkServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewWDKServiceClient constructs a client stub over cc.
func NewWDKServiceClient(cc grpc.ClientConnInterface) WDKServiceClient {
	return &wdkServiceClient{cc: cc}
}

func (c *wdkServiceClient) CreateStep(ctx context.Context, req *CreateStepRequest, opts ...grpc.CallOption) (*CreateStepResponse, error) {
	resp := new(CreateStepResponse)
	if err := c.cc.Invoke(ctx, methodCreateStep, req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *wdkServiceClient) GetRecordTypesForSearch(ctx context.Context, req *GetRecordTypesForSearchRequest, opts ...grpc.CallOption) (*GetRecordTypesForSearchResponse, error) {
	resp := new(GetRecordTypesForSearchResponse)
	if err := c.cc.Invoke(ctx, methodRecordTypesSearch, req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

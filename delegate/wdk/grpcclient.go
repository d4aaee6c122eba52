package wdk

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/veupathdb/strategy-delegate/delegate/wdk/wdkpb"
)

// GRPCClient backs Client over a gRPC connection to the WDK query service.
// Message shapes live in wdk/wdkpb since no .proto/codegen step runs in
// this module; they are hand-written structs shaped like what protoc-gen-go
// would emit.
type GRPCClient struct {
	conn   *grpc.ClientConn
	client wdkpb.WDKServiceClient
}

// NewGRPCClient dials target and wraps the connection.
func NewGRPCClient(ctx context.Context, target string, opts ...grpc.DialOption) (*GRPCClient, error) {
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCClient{conn: conn, client: wdkpb.NewWDKServiceClient(conn)}, nil
}

func (c *GRPCClient) Close() error { return c.conn.Close() }

func (c *GRPCClient) CreateStep(ctx context.Context, req CreateStepRequest) (CreateStepResponse, error) {
	params, err := structpb.NewStruct(req.Parameters)
	if err != nil {
		return CreateStepResponse{}, err
	}

	pbReq := &wdkpb.CreateStepRequest{
		SearchName:           req.SearchName,
		Parameters:           params,
		RecordType:           req.RecordType,
		PrimaryInputStepId:   req.PrimaryInputStepID,
		SecondaryInputStepId: req.SecondaryInputStepID,
		Operator:             req.Operator,
		DisplayName:          req.DisplayName,
		GraphId:              req.GraphID,
	}
	if req.Colocation != nil {
		pbReq.Colocation = &wdkpb.ColocationParams{
			Upstream:   int32(req.Colocation.Upstream),
			Downstream: int32(req.Colocation.Downstream),
			Strand:     string(req.Colocation.Strand),
		}
	}

	resp, err := c.client.CreateStep(ctx, pbReq)
	if err != nil {
		return CreateStepResponse{}, err
	}
	return CreateStepResponse{
		OK: resp.Ok, Code: resp.Code, Message: resp.Message,
		StepID: resp.StepId, DisplayName: resp.DisplayName,
	}, nil
}

func (c *GRPCClient) GetRecordTypesForSearch(ctx context.Context, searchName string) ([]string, error) {
	resp, err := c.client.GetRecordTypesForSearch(ctx, &wdkpb.GetRecordTypesForSearchRequest{SearchName: searchName})
	if err != nil {
		return nil, err
	}
	return resp.RecordTypes, nil
}

package grpc

import (
	"context"
	"math"
	"strconv"

	"github.com/naughtygopher/errors"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	itemsServiceName = "items.v1.ItemsService"

	FullMethodGetPricedItem = "/" + itemsServiceName + "/GetPricedItem"
)

// ItemsServiceServer is the server API of items.v1.ItemsService.
// Messages are google.protobuf.Struct, so clients need no generated code, e.g.
//
//	grpcurl -plaintext -d '{"id":"1","type":"restaurant"}' localhost:5002 items.v1.ItemsService/GetPricedItem
//
// The grpcurl call needs the struct.proto descriptor passed via -proto/-protoset, since
// the server does not register reflection.
type ItemsServiceServer interface {
	// GetPricedItem accepts {"id": "<int64>", "type": "<string>"} and returns
	// {"id": "<int64>", "name": "<string>", "price": <number>}. Ids are strings since
	// Struct numbers are float64.
	GetPricedItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var itemsServiceDesc = grpc.ServiceDesc{
	ServiceName: itemsServiceName,
	HandlerType: (*ItemsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetPricedItem",
			Handler:    getPricedItemHandler,
		},
	},
	Streams: []grpc.StreamDesc{},
}

func getPricedItemHandler( //nolint:revive // signature is defined by grpc.MethodHandler
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(structpb.Struct)
	err := dec(in)
	if err != nil {
		return nil, err
	}

	server, _ := srv.(ItemsServiceServer)
	if interceptor == nil {
		return server.GetPricedItem(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FullMethodGetPricedItem,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		sreq, _ := req.(*structpb.Struct)
		return server.GetPricedItem(ctx, sreq)
	}

	return interceptor(ctx, in, info, handler)
}

// itemID accepts the id as a decimal string, or as a whole number within float64's exact
// integer range.
func itemID(val *structpb.Value) (int64, error) {
	const maxExactFloat = 1 << 53

	switch kind := val.GetKind().(type) {
	case *structpb.Value_StringValue:
		id, err := strconv.ParseInt(kind.StringValue, 10, 64)
		if err != nil {
			return 0, errors.InputBodyf("invalid item id provided: %s", kind.StringValue)
		}
		return id, nil

	case *structpb.Value_NumberValue:
		num := kind.NumberValue
		if num != math.Trunc(num) || math.Abs(num) > maxExactFloat {
			return 0, errors.InputBodyf("invalid item id provided: %v", num)
		}
		return int64(num), nil
	}

	return 0, errors.InputBody("item id is required")
}

func (grp *GRPC) GetPricedItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	id, err := itemID(fields["id"])
	if err != nil {
		return nil, err
	}

	priced, err := grp.apis.ItemPriced(ctx, id, fields["type"].GetStringValue())
	if err != nil {
		return nil, err
	}

	resp, err := structpb.NewStruct(map[string]any{
		"id":    strconv.FormatInt(priced.ID, 10),
		"name":  priced.Name,
		"price": priced.Price,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to build response")
	}

	return resp, nil
}

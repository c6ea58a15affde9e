package daemon

import (
	"context"
	"fmt"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// FetchPageMethod is the full gRPC method name of the page RPC.
const FetchPageMethod = "/ringlist.v1.PageService/FetchPage"

// PageServiceServer is the server API for ringlist.v1.PageService.
// Messages are google.protobuf.Struct values; see PageRequest and
// PageResponse for their fields.
type PageServiceServer interface {
	FetchPage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var pageServiceDesc = grpc.ServiceDesc{
	ServiceName: "ringlist.v1.PageService",
	HandlerType: (*PageServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "FetchPage",
			Handler:    fetchPageHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ringlist/v1/page.proto",
}

// RegisterPageServiceServer registers srv on s.
func RegisterPageServiceServer(s grpc.ServiceRegistrar, srv PageServiceServer) {
	s.RegisterService(&pageServiceDesc, srv)
}

func fetchPageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PageServiceServer).FetchPage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FetchPageMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PageServiceServer).FetchPage(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// PageRequest asks for one page of the items matching Query.
type PageRequest struct {
	Query    string
	PageNum  int
	PageSize int
}

// PageItem is one item of a page.
type PageItem struct {
	ID   string
	Text string
}

// PageResponse carries a page and the total number of matching items.
type PageResponse struct {
	Items []PageItem
	Total int
}

// Encode converts the request to its wire form.
func (r PageRequest) Encode() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"query":     r.Query,
		"page_num":  r.PageNum,
		"page_size": r.PageSize,
	})
}

// DecodePageRequest parses and validates a wire request. Validation errors
// carry codes.InvalidArgument.
func DecodePageRequest(s *structpb.Struct) (PageRequest, error) {
	fields := s.GetFields()
	var req PageRequest
	if v, ok := fields["query"]; ok {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return PageRequest{}, status.Error(codes.InvalidArgument, "query must be a string")
		}
		req.Query = sv.StringValue
	}

	var err error
	if req.PageNum, err = positiveInt(fields, "page_num"); err != nil {
		return PageRequest{}, err
	}
	if req.PageSize, err = positiveInt(fields, "page_size"); err != nil {
		return PageRequest{}, err
	}
	return req, nil
}

func positiveInt(fields map[string]*structpb.Value, name string) (int, error) {
	v, ok := fields[name]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", name)
	}
	f := nv.NumberValue
	if f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a positive integer, got %v", name, f)
	}
	return int(f), nil
}

// Encode converts the response to its wire form.
func (r PageResponse) Encode() (*structpb.Struct, error) {
	items := make([]any, len(r.Items))
	for i, it := range r.Items {
		items[i] = map[string]any{"id": it.ID, "text": it.Text}
	}
	return structpb.NewStruct(map[string]any{
		"items": items,
		"total": r.Total,
	})
}

// DecodePageResponse parses a wire response.
func DecodePageResponse(s *structpb.Struct) (PageResponse, error) {
	fields := s.GetFields()

	total, ok := fields["total"].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return PageResponse{}, fmt.Errorf("page response: missing total")
	}
	resp := PageResponse{Total: int(total.NumberValue)}

	for i, v := range fields["items"].GetListValue().GetValues() {
		item := v.GetStructValue().GetFields()
		if item == nil {
			return PageResponse{}, fmt.Errorf("page response: item %d is not an object", i)
		}
		resp.Items = append(resp.Items, PageItem{
			ID:   item["id"].GetStringValue(),
			Text: item["text"].GetStringValue(),
		})
	}
	return resp, nil
}

package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// MediaServiceName is the fully qualified gRPC service name
const MediaServiceName = "media.v1.MediaService"

// MediaServiceServer is the server API of media.v1.MediaService.
// Requests and replies are protobuf well-known types so callers need no
// generated stubs.
type MediaServiceServer interface {
	ResolveAttachmentID(context.Context, *structpb.Value) (*wrapperspb.UInt64Value, error)
	RenderImage(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	GetImageURL(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	ImportAttachment(context.Context, *structpb.Struct) (*wrapperspb.UInt64Value, error)
}

// MediaServiceDesc describes media.v1.MediaService for grpc.Server.RegisterService
var MediaServiceDesc = grpc.ServiceDesc{
	ServiceName: MediaServiceName,
	HandlerType: (*MediaServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ResolveAttachmentID", Handler: resolveAttachmentIDHandler},
		{MethodName: "RenderImage", Handler: renderImageHandler},
		{MethodName: "GetImageURL", Handler: getImageURLHandler},
		{MethodName: "ImportAttachment", Handler: importAttachmentHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "media/v1/media.proto",
}

func resolveAttachmentIDHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MediaServiceServer).ResolveAttachmentID(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + MediaServiceName + "/ResolveAttachmentID",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MediaServiceServer).ResolveAttachmentID(ctx, req.(*structpb.Value))
	}
	return interceptor(ctx, in, info, handler)
}

func renderImageHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MediaServiceServer).RenderImage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + MediaServiceName + "/RenderImage",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MediaServiceServer).RenderImage(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getImageURLHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MediaServiceServer).GetImageURL(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + MediaServiceName + "/GetImageURL",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MediaServiceServer).GetImageURL(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func importAttachmentHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MediaServiceServer).ImportAttachment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + MediaServiceName + "/ImportAttachment",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MediaServiceServer).ImportAttachment(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "secureshare.v1.AccessControl"

// Method names. Requests and responses are google.protobuf.Struct messages.
const (
	MethodPing                 = "Ping"
	MethodUpload               = "Upload"
	MethodDownload             = "Download"
	MethodView                 = "View"
	MethodRename               = "Rename"
	MethodDelete               = "Delete"
	MethodGrant                = "Grant"
	MethodRevoke               = "Revoke"
	MethodListGrants           = "ListGrants"
	MethodIssueShareToken      = "IssueShareToken"
	MethodRedeemShareToken     = "RedeemShareToken"
	MethodReshare              = "Reshare"
	MethodDeactivateShareToken = "DeactivateShareToken"
	MethodQueryAuditLog        = "QueryAuditLog"
)

// FullMethod returns the path a client invokes for method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// AccessControlServer is the server side of the service.
type AccessControlServer interface {
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Upload(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Download(context.Context, *structpb.Struct) (*structpb.Struct, error)
	View(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Rename(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Grant(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Revoke(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListGrants(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IssueShareToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RedeemShareToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reshare(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeactivateShareToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	QueryAuditLog(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(AccessControlServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, m unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(AccessControlServer)
			if interceptor == nil {
				return m(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return m(s, ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccessControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodPing, AccessControlServer.Ping),
		unary(MethodUpload, AccessControlServer.Upload),
		unary(MethodDownload, AccessControlServer.Download),
		unary(MethodView, AccessControlServer.View),
		unary(MethodRename, AccessControlServer.Rename),
		unary(MethodDelete, AccessControlServer.Delete),
		unary(MethodGrant, AccessControlServer.Grant),
		unary(MethodRevoke, AccessControlServer.Revoke),
		unary(MethodListGrants, AccessControlServer.ListGrants),
		unary(MethodIssueShareToken, AccessControlServer.IssueShareToken),
		unary(MethodRedeemShareToken, AccessControlServer.RedeemShareToken),
		unary(MethodReshare, AccessControlServer.Reshare),
		unary(MethodDeactivateShareToken, AccessControlServer.DeactivateShareToken),
		unary(MethodQueryAuditLog, AccessControlServer.QueryAuditLog),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "secureshare/v1/access_control.proto",
}

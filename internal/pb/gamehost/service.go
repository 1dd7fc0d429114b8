package pbgamehost

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/r-heap47/gamehost/internal/api/grpc/codec"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "gamehost.v1.Provisioner"

// ProvisionerServer is the server API of the Provisioner service.
type ProvisionerServer interface {
	CreateUser(context.Context, *CreateUserRequest) (*User, error)
	CreateServer(context.Context, *CreateServerRequest) (*Server, error)
	FindServer(context.Context, *FindServerRequest) (*Server, error)
	ListServers(context.Context, *ListRequest) (*ListServersResponse, error)
	DeleteServer(context.Context, *ServerRef) (*emptypb.Empty, error)
	FindUser(context.Context, *FindUserRequest) (*User, error)
	ListUsers(context.Context, *ListRequest) (*ListUsersResponse, error)
	DeleteUser(context.Context, *UserRef) (*emptypb.Empty, error)
	UpdateUser(context.Context, *UpdateUserRequest) (*User, error)
	UserServers(context.Context, *UserRef) (*ListServersResponse, error)
	ServerStatus(context.Context, *ServerRef) (*StatusResponse, error)
	ServerUsage(context.Context, *ServerRef) (*UsageResponse, error)
	PowerServer(context.Context, *PowerRequest) (*emptypb.Empty, error)
	RenameServer(context.Context, *RenameRequest) (*emptypb.Empty, error)
	SetResources(context.Context, *SetResourcesRequest) (*Limits, error)
	SetDomain(context.Context, *SetDomainRequest) (*SetDomainResponse, error)
	Allow(context.Context, *AccessRequest) (*AccessResponse, error)
	Disallow(context.Context, *AccessRequest) (*AccessResponse, error)
	HasPermission(context.Context, *AccessRequest) (*PermissionResponse, error)
	PreviewPlacement(context.Context, *emptypb.Empty) (*PlacementResponse, error)
}

// UnimplementedProvisionerServer answers every method with codes.Unimplemented.
type UnimplementedProvisionerServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedProvisionerServer) CreateUser(context.Context, *CreateUserRequest) (*User, error) {
	return nil, unimplemented("CreateUser")
}
func (UnimplementedProvisionerServer) CreateServer(context.Context, *CreateServerRequest) (*Server, error) {
	return nil, unimplemented("CreateServer")
}
func (UnimplementedProvisionerServer) FindServer(context.Context, *FindServerRequest) (*Server, error) {
	return nil, unimplemented("FindServer")
}
func (UnimplementedProvisionerServer) ListServers(context.Context, *ListRequest) (*ListServersResponse, error) {
	return nil, unimplemented("ListServers")
}
func (UnimplementedProvisionerServer) DeleteServer(context.Context, *ServerRef) (*emptypb.Empty, error) {
	return nil, unimplemented("DeleteServer")
}
func (UnimplementedProvisionerServer) FindUser(context.Context, *FindUserRequest) (*User, error) {
	return nil, unimplemented("FindUser")
}
func (UnimplementedProvisionerServer) ListUsers(context.Context, *ListRequest) (*ListUsersResponse, error) {
	return nil, unimplemented("ListUsers")
}
func (UnimplementedProvisionerServer) DeleteUser(context.Context, *UserRef) (*emptypb.Empty, error) {
	return nil, unimplemented("DeleteUser")
}
func (UnimplementedProvisionerServer) UpdateUser(context.Context, *UpdateUserRequest) (*User, error) {
	return nil, unimplemented("UpdateUser")
}
func (UnimplementedProvisionerServer) UserServers(context.Context, *UserRef) (*ListServersResponse, error) {
	return nil, unimplemented("UserServers")
}
func (UnimplementedProvisionerServer) ServerStatus(context.Context, *ServerRef) (*StatusResponse, error) {
	return nil, unimplemented("ServerStatus")
}
func (UnimplementedProvisionerServer) ServerUsage(context.Context, *ServerRef) (*UsageResponse, error) {
	return nil, unimplemented("ServerUsage")
}
func (UnimplementedProvisionerServer) PowerServer(context.Context, *PowerRequest) (*emptypb.Empty, error) {
	return nil, unimplemented("PowerServer")
}
func (UnimplementedProvisionerServer) RenameServer(context.Context, *RenameRequest) (*emptypb.Empty, error) {
	return nil, unimplemented("RenameServer")
}
func (UnimplementedProvisionerServer) SetResources(context.Context, *SetResourcesRequest) (*Limits, error) {
	return nil, unimplemented("SetResources")
}
func (UnimplementedProvisionerServer) SetDomain(context.Context, *SetDomainRequest) (*SetDomainResponse, error) {
	return nil, unimplemented("SetDomain")
}
func (UnimplementedProvisionerServer) Allow(context.Context, *AccessRequest) (*AccessResponse, error) {
	return nil, unimplemented("Allow")
}
func (UnimplementedProvisionerServer) Disallow(context.Context, *AccessRequest) (*AccessResponse, error) {
	return nil, unimplemented("Disallow")
}
func (UnimplementedProvisionerServer) HasPermission(context.Context, *AccessRequest) (*PermissionResponse, error) {
	return nil, unimplemented("HasPermission")
}
func (UnimplementedProvisionerServer) PreviewPlacement(context.Context, *emptypb.Empty) (*PlacementResponse, error) {
	return nil, unimplemented("PreviewPlacement")
}

// RegisterProvisionerServer registers srv on s.
func RegisterProvisionerServer(s grpc.ServiceRegistrar, srv ProvisionerServer) {
	s.RegisterService(&ProvisionerServiceDesc, srv)
}

// ProvisionerServiceDesc describes the Provisioner service.
var ProvisionerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProvisionerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateUser", ProvisionerServer.CreateUser),
		unary("CreateServer", ProvisionerServer.CreateServer),
		unary("FindServer", ProvisionerServer.FindServer),
		unary("ListServers", ProvisionerServer.ListServers),
		unary("DeleteServer", ProvisionerServer.DeleteServer),
		unary("FindUser", ProvisionerServer.FindUser),
		unary("ListUsers", ProvisionerServer.ListUsers),
		unary("DeleteUser", ProvisionerServer.DeleteUser),
		unary("UpdateUser", ProvisionerServer.UpdateUser),
		unary("UserServers", ProvisionerServer.UserServers),
		unary("ServerStatus", ProvisionerServer.ServerStatus),
		unary("ServerUsage", ProvisionerServer.ServerUsage),
		unary("PowerServer", ProvisionerServer.PowerServer),
		unary("RenameServer", ProvisionerServer.RenameServer),
		unary("SetResources", ProvisionerServer.SetResources),
		unary("SetDomain", ProvisionerServer.SetDomain),
		unary("Allow", ProvisionerServer.Allow),
		unary("Disallow", ProvisionerServer.Disallow),
		unary("HasPermission", ProvisionerServer.HasPermission),
		unary("PreviewPlacement", ProvisionerServer.PreviewPlacement),
	},
	Metadata: "gamehost/v1/provisioner",
}

// FullMethod returns the gRPC path of a Provisioner method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req, Resp any](method string, call func(ProvisionerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}

			if interceptor == nil {
				return call(srv.(ProvisionerServer), ctx, in)
			}

			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(ProvisionerServer), ctx, req.(*Req))
			})
		},
	}
}

// ProvisionerClient is the client API of the Provisioner service.
type ProvisionerClient interface {
	CreateUser(ctx context.Context, in *CreateUserRequest, opts ...grpc.CallOption) (*User, error)
	CreateServer(ctx context.Context, in *CreateServerRequest, opts ...grpc.CallOption) (*Server, error)
	FindServer(ctx context.Context, in *FindServerRequest, opts ...grpc.CallOption) (*Server, error)
	ListServers(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListServersResponse, error)
	DeleteServer(ctx context.Context, in *ServerRef, opts ...grpc.CallOption) (*emptypb.Empty, error)
	FindUser(ctx context.Context, in *FindUserRequest, opts ...grpc.CallOption) (*User, error)
	ListUsers(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListUsersResponse, error)
	DeleteUser(ctx context.Context, in *UserRef, opts ...grpc.CallOption) (*emptypb.Empty, error)
	UpdateUser(ctx context.Context, in *UpdateUserRequest, opts ...grpc.CallOption) (*User, error)
	UserServers(ctx context.Context, in *UserRef, opts ...grpc.CallOption) (*ListServersResponse, error)
	ServerStatus(ctx context.Context, in *ServerRef, opts ...grpc.CallOption) (*StatusResponse, error)
	ServerUsage(ctx context.Context, in *ServerRef, opts ...grpc.CallOption) (*UsageResponse, error)
	PowerServer(ctx context.Context, in *PowerRequest, opts ...grpc.CallOption) (*emptypb.Empty, error)
	RenameServer(ctx context.Context, in *RenameRequest, opts ...grpc.CallOption) (*emptypb.Empty, error)
	SetResources(ctx context.Context, in *SetResourcesRequest, opts ...grpc.CallOption) (*Limits, error)
	SetDomain(ctx context.Context, in *SetDomainRequest, opts ...grpc.CallOption) (*SetDomainResponse, error)
	Allow(ctx context.Context, in *AccessRequest, opts ...grpc.CallOption) (*AccessResponse, error)
	Disallow(ctx context.Context, in *AccessRequest, opts ...grpc.CallOption) (*AccessResponse, error)
	HasPermission(ctx context.Context, in *AccessRequest, opts ...grpc.CallOption) (*PermissionResponse, error)
	PreviewPlacement(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*PlacementResponse, error)
}

type provisionerClient struct {
	cc grpc.ClientConnInterface
}

// NewProvisionerClient creates a client that speaks the JSON codec over cc.
func NewProvisionerClient(cc grpc.ClientConnInterface) ProvisionerClient {
	return &provisionerClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codec.Name)}, opts...)

	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *provisionerClient) CreateUser(ctx context.Context, in *CreateUserRequest, opts ...grpc.CallOption) (*User, error) {
	return invoke[User](ctx, c.cc, "CreateUser", in, opts)
}
func (c *provisionerClient) CreateServer(ctx context.Context, in *CreateServerRequest, opts ...grpc.CallOption) (*Server, error) {
	return invoke[Server](ctx, c.cc, "CreateServer", in, opts)
}
func (c *provisionerClient) FindServer(ctx context.Context, in *FindServerRequest, opts ...grpc.CallOption) (*Server, error) {
	return invoke[Server](ctx, c.cc, "FindServer", in, opts)
}
func (c *provisionerClient) ListServers(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListServersResponse, error) {
	return invoke[ListServersResponse](ctx, c.cc, "ListServers", in, opts)
}
func (c *provisionerClient) DeleteServer(ctx context.Context, in *ServerRef, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, "DeleteServer", in, opts)
}
func (c *provisionerClient) FindUser(ctx context.Context, in *FindUserRequest, opts ...grpc.CallOption) (*User, error) {
	return invoke[User](ctx, c.cc, "FindUser", in, opts)
}
func (c *provisionerClient) ListUsers(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListUsersResponse, error) {
	return invoke[ListUsersResponse](ctx, c.cc, "ListUsers", in, opts)
}
func (c *provisionerClient) DeleteUser(ctx context.Context, in *UserRef, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, "DeleteUser", in, opts)
}
func (c *provisionerClient) UpdateUser(ctx context.Context, in *UpdateUserRequest, opts ...grpc.CallOption) (*User, error) {
	return invoke[User](ctx, c.cc, "UpdateUser", in, opts)
}
func (c *provisionerClient) UserServers(ctx context.Context, in *UserRef, opts ...grpc.CallOption) (*ListServersResponse, error) {
	return invoke[ListServersResponse](ctx, c.cc, "UserServers", in, opts)
}
func (c *provisionerClient) ServerStatus(ctx context.Context, in *ServerRef, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c.cc, "ServerStatus", in, opts)
}
func (c *provisionerClient) ServerUsage(ctx context.Context, in *ServerRef, opts ...grpc.CallOption) (*UsageResponse, error) {
	return invoke[UsageResponse](ctx, c.cc, "ServerUsage", in, opts)
}
func (c *provisionerClient) PowerServer(ctx context.Context, in *PowerRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, "PowerServer", in, opts)
}
func (c *provisionerClient) RenameServer(ctx context.Context, in *RenameRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, "RenameServer", in, opts)
}
func (c *provisionerClient) SetResources(ctx context.Context, in *SetResourcesRequest, opts ...grpc.CallOption) (*Limits, error) {
	return invoke[Limits](ctx, c.cc, "SetResources", in, opts)
}
func (c *provisionerClient) SetDomain(ctx context.Context, in *SetDomainRequest, opts ...grpc.CallOption) (*SetDomainResponse, error) {
	return invoke[SetDomainResponse](ctx, c.cc, "SetDomain", in, opts)
}
func (c *provisionerClient) Allow(ctx context.Context, in *AccessRequest, opts ...grpc.CallOption) (*AccessResponse, error) {
	return invoke[AccessResponse](ctx, c.cc, "Allow", in, opts)
}
func (c *provisionerClient) Disallow(ctx context.Context, in *AccessRequest, opts ...grpc.CallOption) (*AccessResponse, error) {
	return invoke[AccessResponse](ctx, c.cc, "Disallow", in, opts)
}
func (c *provisionerClient) HasPermission(ctx context.Context, in *AccessRequest, opts ...grpc.CallOption) (*PermissionResponse, error) {
	return invoke[PermissionResponse](ctx, c.cc, "HasPermission", in, opts)
}
func (c *provisionerClient) PreviewPlacement(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*PlacementResponse, error) {
	return invoke[PlacementResponse](ctx, c.cc, "PreviewPlacement", in, opts)
}

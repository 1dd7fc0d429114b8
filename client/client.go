// Package client is the Go client of the gamehost provisioning daemon.
package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/r-heap47/gamehost/client/internal/conn"
	pbgamehost "github.com/r-heap47/gamehost/internal/pb/gamehost"
)

type (
	Server              = pbgamehost.Server
	User                = pbgamehost.User
	Usage               = pbgamehost.UsageResponse
	Limits              = pbgamehost.Limits
	Candidate           = pbgamehost.Candidate
	CreateUserRequest   = pbgamehost.CreateUserRequest
	CreateServerRequest = pbgamehost.CreateServerRequest
	UpdateUserRequest   = pbgamehost.UpdateUserRequest
	SetResourcesRequest = pbgamehost.SetResourcesRequest
)

// Lookup keys of FindServer.
const (
	ServerByName       = pbgamehost.ServerByName
	ServerByUUID       = pbgamehost.ServerByUUID
	ServerByIdentifier = pbgamehost.ServerByIdentifier
	ServerByID         = pbgamehost.ServerByID
	ServerByDomain     = pbgamehost.ServerByDomain
)

// Lookup keys of FindUser.
const (
	UserByUsername    = pbgamehost.UserByUsername
	UserByEmail       = pbgamehost.UserByEmail
	UserByCorrelation = pbgamehost.UserByCorrelation
	UserByID          = pbgamehost.UserByID
)

// Power signals.
const (
	PowerStart   = pbgamehost.PowerStart
	PowerStop    = pbgamehost.PowerStop
	PowerRestart = pbgamehost.PowerRestart
	PowerKill    = pbgamehost.PowerKill
)

// Client talks to one provisioning daemon.
type Client struct {
	pb      pbgamehost.ProvisionerClient
	release func()
	timeout time.Duration
}

// New creates a new Client. addr is the gRPC address of the daemon (e.g. "localhost:5005").
func New(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	connector := o.conn
	if connector == nil {
		connector = conn.NewDialConnector(o.dialOpts...)
	}

	pb, release, err := connector.Connect(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}

	return &Client{pb: pb, release: release, timeout: o.timeout}, nil
}

// Close releases resources.
func (c *Client) Close() error {
	c.release()
	return nil
}

// CreateUser provisions an account. Fails with ErrAlreadyExists when the username is taken.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	return call(ctx, c, c.pb.CreateUser, &req)
}

// CreateServer provisions a server for the account with req.OwnerEmail.
func (c *Client) CreateServer(ctx context.Context, req CreateServerRequest) (*Server, error) {
	return call(ctx, c, c.pb.CreateServer, &req)
}

// FindServer resolves a server by one of the ServerBy keys.
func (c *Client) FindServer(ctx context.Context, by, value string) (*Server, error) {
	return call(ctx, c, c.pb.FindServer, &pbgamehost.FindServerRequest{By: by, Value: value})
}

// ListServers returns one page of servers. Pages start at 1; a non-positive size uses the daemon default.
func (c *Client) ListServers(ctx context.Context, page, size int) ([]*Server, error) {
	resp, err := call(ctx, c, c.pb.ListServers, &pbgamehost.ListRequest{Page: page, Size: size})
	if err != nil {
		return nil, err
	}
	return resp.Servers, nil
}

// DeleteServer removes the server with identifier.
func (c *Client) DeleteServer(ctx context.Context, identifier string) error {
	_, err := call(ctx, c, c.pb.DeleteServer, &pbgamehost.ServerRef{Identifier: identifier})
	return err
}

// FindUser resolves an account by one of the UserBy keys.
func (c *Client) FindUser(ctx context.Context, by, value string) (*User, error) {
	return call(ctx, c, c.pb.FindUser, &pbgamehost.FindUserRequest{By: by, Value: value})
}

// ListUsers returns one page of accounts.
func (c *Client) ListUsers(ctx context.Context, page, size int) ([]*User, error) {
	resp, err := call(ctx, c, c.pb.ListUsers, &pbgamehost.ListRequest{Page: page, Size: size})
	if err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// DeleteUser removes the account with email.
func (c *Client) DeleteUser(ctx context.Context, email string) error {
	_, err := call(ctx, c, c.pb.DeleteUser, &pbgamehost.UserRef{Email: email})
	return err
}

// UpdateUser changes the non-nil fields of the account with req.Email.
func (c *Client) UpdateUser(ctx context.Context, req UpdateUserRequest) (*User, error) {
	return call(ctx, c, c.pb.UpdateUser, &req)
}

// UserServers lists the servers the account with email owns or can access.
func (c *Client) UserServers(ctx context.Context, email string) ([]*Server, error) {
	resp, err := call(ctx, c, c.pb.UserServers, &pbgamehost.UserRef{Email: email})
	if err != nil {
		return nil, err
	}
	return resp.Servers, nil
}

// ServerStatus returns OFFLINE, STARTING, ONLINE or STOPPING.
func (c *Client) ServerStatus(ctx context.Context, identifier string) (string, error) {
	resp, err := call(ctx, c, c.pb.ServerStatus, &pbgamehost.ServerRef{Identifier: identifier})
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

// ServerUsage returns the current resource consumption.
func (c *Client) ServerUsage(ctx context.Context, identifier string) (*Usage, error) {
	return call(ctx, c, c.pb.ServerUsage, &pbgamehost.ServerRef{Identifier: identifier})
}

// Power sends one of the Power signals.
func (c *Client) Power(ctx context.Context, identifier, signal string) error {
	_, err := call(ctx, c, c.pb.PowerServer, &pbgamehost.PowerRequest{Identifier: identifier, Signal: signal})
	return err
}

// RenameServer changes the display name.
func (c *Client) RenameServer(ctx context.Context, identifier, name string) error {
	_, err := call(ctx, c, c.pb.RenameServer, &pbgamehost.RenameRequest{Identifier: identifier, Name: name})
	return err
}

// SetResources applies the non-nil limits and returns the resulting ones.
func (c *Client) SetResources(ctx context.Context, req SetResourcesRequest) (*Limits, error) {
	return call(ctx, c, c.pb.SetResources, &req)
}

// SetDomain labels the primary allocation. It reports false when there was none to label.
func (c *Client) SetDomain(ctx context.Context, identifier, domain string) (bool, error) {
	resp, err := call(ctx, c, c.pb.SetDomain, &pbgamehost.SetDomainRequest{Identifier: identifier, Domain: domain})
	if err != nil {
		return false, err
	}
	return resp.Updated, nil
}

// Allow grants the control bundle to the account with email.
func (c *Client) Allow(ctx context.Context, identifier, email string) (bool, error) {
	resp, err := call(ctx, c, c.pb.Allow, &pbgamehost.AccessRequest{Identifier: identifier, Email: email})
	if err != nil {
		return false, err
	}
	return resp.Changed, nil
}

// Disallow revokes the control bundle from the account with email.
func (c *Client) Disallow(ctx context.Context, identifier, email string) (bool, error) {
	resp, err := call(ctx, c, c.pb.Disallow, &pbgamehost.AccessRequest{Identifier: identifier, Email: email})
	if err != nil {
		return false, err
	}
	return resp.Changed, nil
}

// HasPermission reports whether the account with email owns or can access the server.
func (c *Client) HasPermission(ctx context.Context, identifier, email string) (bool, error) {
	resp, err := call(ctx, c, c.pb.HasPermission, &pbgamehost.AccessRequest{Identifier: identifier, Email: email})
	if err != nil {
		return false, err
	}
	return resp.Granted, nil
}

// PreviewPlacement ranks the nodes the way the next server would be placed.
func (c *Client) PreviewPlacement(ctx context.Context) ([]*Candidate, error) {
	resp, err := call(ctx, c, c.pb.PreviewPlacement, &emptypb.Empty{})
	if err != nil {
		return nil, err
	}
	return resp.Candidates, nil
}

func call[Req, Resp any](
	ctx context.Context,
	c *Client,
	rpc func(context.Context, *Req, ...grpc.CallOption) (*Resp, error),
	req *Req,
) (*Resp, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := rpc(ctx, req)
	if err != nil {
		return nil, fromStatus(err)
	}

	return resp, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}

	return ctx, func() {}
}

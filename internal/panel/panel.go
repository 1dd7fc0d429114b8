package panel

import "context"

// NodeClient reads compute nodes and their locations.
type NodeClient interface {
	// ListNodes returns every node with freshly reported capacity.
	ListNodes(ctx context.Context) ([]Node, error)
	GetNode(ctx context.Context, id int64) (Node, error)
	GetLocation(ctx context.Context, id int64) (Location, error)
}

// AllocationClient reads and annotates network allocations.
type AllocationClient interface {
	ListAllocations(ctx context.Context, nodeID int64) ([]Allocation, error)
	GetAllocation(ctx context.Context, id int64) (Allocation, error)
	// SetAllocationNotes writes the free-form label of an allocation assigned to the server.
	SetAllocationNotes(ctx context.Context, identifier string, allocationID int64, notes string) error
}

// EggClient reads the server template catalog.
type EggClient interface {
	ListEggs(ctx context.Context) ([]Egg, error)
}

// UserClient manages panel accounts.
type UserClient interface {
	ListUsers(ctx context.Context, filter UserFilter, page Page) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (User, error)
	EditUser(ctx context.Context, id int64, edit UserEdit) (User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// ServerClient manages server instances.
type ServerClient interface {
	ListServers(ctx context.Context, filter ServerFilter, page Page) ([]Server, error)
	GetServer(ctx context.Context, id int64) (Server, error)
	GetServerByIdentifier(ctx context.Context, identifier string) (Server, error)
	CreateServer(ctx context.Context, req CreateServerRequest) (Server, error)
	UpdateBuild(ctx context.Context, id int64, limits Limits) (Server, error)
	RenameServer(ctx context.Context, identifier, name string) error
	DeleteServer(ctx context.Context, id int64, force bool) error
	Utilization(ctx context.Context, identifier string) (Utilization, error)
	SendPower(ctx context.Context, identifier string, signal PowerSignal) error
}

// SubuserClient manages per-server entitlements.
type SubuserClient interface {
	ListSubusers(ctx context.Context, identifier string) ([]Subuser, error)
	CreateSubuser(ctx context.Context, identifier, email string, perms []Permission) (Subuser, error)
	UpdateSubuser(ctx context.Context, identifier, uuid string, perms []Permission) (Subuser, error)
}

// Client is the full panel capability set. Implementations must be safe for concurrent use
// and honor ctx deadlines as per-call timeouts.
type Client interface {
	NodeClient
	AllocationClient
	EggClient
	UserClient
	ServerClient
	SubuserClient
}

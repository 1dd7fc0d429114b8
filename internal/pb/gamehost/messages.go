// Package pbgamehost holds the wire types and service descriptor of the
// gamehost.v1.Provisioner gRPC service. Messages travel as JSON.
package pbgamehost

// ErrorDomain is the ErrorInfo domain of classified failures.
const ErrorDomain = "gamehost.v1"

// Server is a provisioned server instance.
type Server struct {
	ID           int64  `json:"id"`
	Identifier   string `json:"identifier"`
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	OwnerID      int64  `json:"owner_id"`
	NodeID       int64  `json:"node_id"`
	Node         string `json:"node"`
	AllocationID int64  `json:"allocation_id"`
	Address      string `json:"address"`
}

// User is a panel account. The password is never returned.
type User struct {
	ID       int64  `json:"id"`
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Tag      string `json:"tag"`
}

type CreateUserRequest struct {
	// CorrelationID is an optional caller-side uuid.
	CorrelationID string `json:"correlation_id,omitempty"`
	Username      string `json:"username"`
	Password      string `json:"password,omitempty"`
	Email         string `json:"email,omitempty"`
}

type CreateServerRequest struct {
	Name        string `json:"name"`
	OwnerEmail  string `json:"owner_email"`
	Egg         string `json:"egg"`
	DockerImage string `json:"docker_image,omitempty"`
	Startup     string `json:"startup,omitempty"`
	Memory      int    `json:"memory"`
	Disk        int    `json:"disk"`
	CPU         int    `json:"cpu"`
}

// Lookup keys of FindServerRequest.
const (
	ServerByName       = "name"
	ServerByUUID       = "uuid"
	ServerByIdentifier = "identifier"
	ServerByID         = "id"
	ServerByDomain     = "domain"
)

type FindServerRequest struct {
	By    string `json:"by"`
	Value string `json:"value"`
}

// Lookup keys of FindUserRequest.
const (
	UserByUsername    = "username"
	UserByEmail       = "email"
	UserByCorrelation = "correlation_id"
	UserByID          = "id"
)

type FindUserRequest struct {
	By    string `json:"by"`
	Value string `json:"value"`
}

// ListRequest selects a 1-based page.
type ListRequest struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

type ListServersResponse struct {
	Servers []*Server `json:"servers"`
}

type ListUsersResponse struct {
	Users []*User `json:"users"`
}

// ServerRef names a server by its public identifier.
type ServerRef struct {
	Identifier string `json:"identifier"`
}

// UserRef names an account by email.
type UserRef struct {
	Email string `json:"email"`
}

// UpdateUserRequest changes the non-nil fields of the account with Email.
type UpdateUserRequest struct {
	Email       string  `json:"email"`
	NewUsername *string `json:"new_username,omitempty"`
	NewEmail    *string `json:"new_email,omitempty"`
	NewPassword *string `json:"new_password,omitempty"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type UsageResponse struct {
	MemoryMB   int64   `json:"memory_mb"`
	DiskMB     int64   `json:"disk_mb"`
	CPUPercent float64 `json:"cpu_percent"`
}

// Power signals.
const (
	PowerStart   = "start"
	PowerStop    = "stop"
	PowerRestart = "restart"
	PowerKill    = "kill"
)

type PowerRequest struct {
	Identifier string `json:"identifier"`
	Signal     string `json:"signal"`
}

type RenameRequest struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
}

type SetResourcesRequest struct {
	Identifier string `json:"identifier"`
	CPU        *int   `json:"cpu,omitempty"`
	Memory     *int   `json:"memory,omitempty"`
	Disk       *int   `json:"disk,omitempty"`
}

type Limits struct {
	Memory int `json:"memory"`
	Disk   int `json:"disk"`
	CPU    int `json:"cpu"`
}

type SetDomainRequest struct {
	Identifier string `json:"identifier"`
	Domain     string `json:"domain"`
}

type SetDomainResponse struct {
	Updated bool `json:"updated"`
}

// AccessRequest names a server and an account.
type AccessRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
}

type AccessResponse struct {
	Changed bool `json:"changed"`
}

type PermissionResponse struct {
	Granted bool `json:"granted"`
}

// Candidate is one ranked node of a placement preview.
type Candidate struct {
	Node        string `json:"node"`
	NodeID      int64  `json:"node_id"`
	UnusedMB    int64  `json:"unused_mb"`
	Low         bool   `json:"low"`
	Maintenance bool   `json:"maintenance"`
	Unknown     bool   `json:"unknown"`
}

type PlacementResponse struct {
	Candidates []*Candidate `json:"candidates"`
}

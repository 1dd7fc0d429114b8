package panel

// Node is a compute host. Memory fields are reported as text in megabytes.
type Node struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	LocationID      int64  `json:"location_id"`
	Maintenance     bool   `json:"maintenance_mode"`
	Memory          string `json:"memory"`
	AllocatedMemory string `json:"allocated_memory"`
}

type Location struct {
	ID    int64  `json:"id"`
	Short string `json:"short"`
	Long  string `json:"long"`
}

// Allocation is an IP:port pair on a node. Notes holds the domain label of the assigned server.
type Allocation struct {
	ID       int64  `json:"id"`
	NodeID   int64  `json:"node_id"`
	IP       string `json:"ip"`
	Alias    string `json:"alias,omitempty"`
	Port     int    `json:"port"`
	Notes    string `json:"notes,omitempty"`
	Assigned bool   `json:"assigned"`
}

// Egg is a server template.
type Egg struct {
	ID          int64  `json:"id"`
	NestID      int64  `json:"nest_id"`
	Name        string `json:"name"`
	DockerImage string `json:"docker_image"`
	Startup     string `json:"startup"`
}

type User struct {
	ID        int64  `json:"id"`
	UUID      string `json:"uuid"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Limits are in megabytes, CPU in percent of one core.
type Limits struct {
	Memory int `json:"memory"`
	Disk   int `json:"disk"`
	CPU    int `json:"cpu"`
}

// FeatureLimits caps auxiliary resources of a server.
type FeatureLimits struct {
	Databases   int `json:"databases"`
	Allocations int `json:"allocations"`
	Backups     int `json:"backups"`
}

// Server is a provisioned instance. ID is the panel's internal id, Identifier the public short id.
type Server struct {
	ID           int64             `json:"id"`
	Identifier   string            `json:"identifier"`
	UUID         string            `json:"uuid"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	OwnerID      int64             `json:"user"`
	NodeID       int64             `json:"node"`
	AllocationID int64             `json:"allocation"`
	EggID        int64             `json:"egg"`
	Limits       Limits            `json:"limits"`
	Features     FeatureLimits     `json:"feature_limits"`
	Environment  map[string]string `json:"environment,omitempty"`
	Installed    bool              `json:"installed"`
}

type PowerState string

const (
	StateOffline  PowerState = "offline"
	StateStarting PowerState = "starting"
	StateRunning  PowerState = "running"
	StateStopping PowerState = "stopping"
)

type PowerSignal string

const (
	SignalStart   PowerSignal = "start"
	SignalStop    PowerSignal = "stop"
	SignalRestart PowerSignal = "restart"
	SignalKill    PowerSignal = "kill"
)

// Utilization is a live resource snapshot of a server.
type Utilization struct {
	State       PowerState `json:"current_state"`
	MemoryBytes int64      `json:"memory_bytes"`
	DiskBytes   int64      `json:"disk_bytes"`
	CPUAbsolute float64    `json:"cpu_absolute"`
}

// Permission is a subuser capability key.
type Permission string

const (
	PermControlConsole Permission = "control.console"
	PermControlStart   Permission = "control.start"
	PermControlStop    Permission = "control.stop"
	PermControlRestart Permission = "control.restart"

	PermUserCreate Permission = "user.create"
	PermUserRead   Permission = "user.read"
	PermUserUpdate Permission = "user.update"
	PermUserDelete Permission = "user.delete"

	PermFileRead        Permission = "file.read"
	PermFileReadContent Permission = "file.read-content"
	PermFileCreate      Permission = "file.create"
	PermFileUpdate      Permission = "file.update"
	PermFileArchive     Permission = "file.archive"
	PermFileSFTP        Permission = "file.sftp"

	PermDatabaseCreate       Permission = "database.create"
	PermDatabaseRead         Permission = "database.read"
	PermDatabaseUpdate       Permission = "database.update"
	PermDatabaseDelete       Permission = "database.delete"
	PermDatabaseViewPassword Permission = "database.view_password"

	PermBackupRead     Permission = "backup.read"
	PermBackupDownload Permission = "backup.download"
	PermBackupRestore  Permission = "backup.restore"
)

// ControlPermissions is the power-control bundle.
var ControlPermissions = []Permission{
	PermControlConsole,
	PermControlStart,
	PermControlStop,
	PermControlRestart,
}

// OwnerPermissions is the bundle granted to the requesting user of a new server.
var OwnerPermissions = []Permission{
	PermFileSFTP,
	PermControlConsole, PermControlStart, PermControlStop, PermControlRestart,
	PermUserCreate, PermUserRead, PermUserUpdate, PermUserDelete,
	PermDatabaseCreate, PermDatabaseRead, PermDatabaseUpdate, PermDatabaseDelete, PermDatabaseViewPassword,
	PermBackupRead, PermBackupDownload, PermBackupRestore,
}

// Subuser is an entitlement of one account on one server.
type Subuser struct {
	UUID        string       `json:"uuid"`
	Email       string       `json:"email"`
	Permissions []Permission `json:"permissions"`
}

// Page selects a 1-based page of a listing.
type Page struct {
	Number int
	Size   int
}

// UserFilter narrows a user listing. Empty fields match everything.
type UserFilter struct {
	Username string
	Email    string
}

// ServerFilter narrows a server listing. Empty fields match everything.
type ServerFilter struct {
	Name string
	UUID string
}

type CreateUserRequest struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// UserEdit updates the non-nil fields.
type UserEdit struct {
	Username *string
	Email    *string
	Password *string
}

// CreateServerRequest creates a server. With AllocationID zero the panel assigns one
// allocation on a node within DeployLocations, restricted to DeployNodes when set.
type CreateServerRequest struct {
	Name              string
	Description       string
	OwnerID           int64
	EggID             int64
	DockerImage       string
	Startup           string
	Environment       map[string]string
	Limits            Limits
	Features          FeatureLimits
	AllocationID      int64
	DeployLocations   []int64
	DeployNodes       []int64
	StartOnCompletion bool
}

package conn

import (
	"context"

	pbgamehost "github.com/r-heap47/gamehost/internal/pb/gamehost"
)

// Connector obtains a ProvisionerClient for a daemon address.
type Connector interface {
	// Connect returns a ProvisionerClient and a release function. Caller must call release when done.
	Connect(ctx context.Context, addr string) (client pbgamehost.ProvisionerClient, release func(), err error)
}

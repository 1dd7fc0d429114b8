package conn

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	pbgamehost "github.com/r-heap47/gamehost/internal/pb/gamehost"
)

// DialConnector creates a gRPC connection to the daemon on each Connect call.
// Connections are plaintext unless the extra options say otherwise.
type DialConnector struct {
	opts []grpc.DialOption
}

// NewDialConnector returns a Connector that dials with opts appended to the defaults.
func NewDialConnector(opts ...grpc.DialOption) *DialConnector {
	return &DialConnector{opts: opts}
}

// Connect creates the connection lazily; release closes it.
func (d *DialConnector) Connect(_ context.Context, addr string) (pbgamehost.ProvisionerClient, func(), error) {
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, d.opts...)

	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("grpc.NewClient: %w", err)
	}

	return pbgamehost.NewProvisionerClient(cc), func() { _ = cc.Close() }, nil
}

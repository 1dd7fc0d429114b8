package client

import (
	"time"

	"google.golang.org/grpc"

	"github.com/r-heap47/gamehost/client/internal/conn"
)

// Option configures the Client.
type Option func(*options)

type options struct {
	timeout  time.Duration
	conn     conn.Connector
	dialOpts []grpc.DialOption
}

// WithTimeout sets the default timeout for RPC calls.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithConnector sets the connector for the daemon connection. If not set, DialConnector is used.
func WithConnector(c conn.Connector) Option {
	return func(o *options) {
		o.conn = c
	}
}

// WithDialOptions appends dial options to the default connector's plaintext credentials.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) {
		o.dialOpts = append(o.dialOpts, opts...)
	}
}

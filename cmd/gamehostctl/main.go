package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/r-heap47/gamehost/client"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type runFunc func(ctx context.Context, c *client.Client, args []string, out io.Writer) error

// newRootCmd builds the command tree. dialOpts are handed to every client the commands open.
func newRootCmd(out io.Writer, dialOpts ...grpc.DialOption) *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)

	root := &cobra.Command{
		Use:           "gamehostctl",
		Short:         "Talk to a gamehost provisioning daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&addr, "addr", os.Getenv("GAMEHOST_ADDR"), "daemon gRPC address (or GAMEHOST_ADDR env)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "timeout of one call")

	action := func(use, short string, run runFunc) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				if addr == "" {
					return errors.New("--addr or GAMEHOST_ADDR required")
				}

				c, err := client.New(cmd.Context(), addr,
					client.WithTimeout(timeout),
					client.WithDialOptions(dialOpts...),
				)
				if err != nil {
					return err
				}
				defer func() { _ = c.Close() }()

				return run(cmd.Context(), c, args, cmd.OutOrStdout())
			},
		}
	}

	user := &cobra.Command{Use: "user", Short: "Manage panel accounts"}
	user.AddCommand(
		action("create <username> [email] [password]", "Create an account", runUserCreate),
		action("find <username|email|correlation_id|id> <value>", "Look an account up", runUserFind),
		action("list [page] [size]", "List accounts", runUserList),
		action("update <email> [username=..] [email=..] [password=..]", "Change an account", runUserUpdate),
		action("delete <email>", "Delete an account", runUserDelete),
		action("servers <email>", "List the servers an account can reach", runUserServers),
	)

	server := &cobra.Command{Use: "server", Short: "Manage game servers"}
	server.AddCommand(
		action("create <name> <owner-email> <egg> <memory-mb> <disk-mb> [cpu-percent]", "Provision a server", runServerCreate),
		action("find <name|uuid|identifier|id|domain> <value>", "Look a server up", runServerFind),
		action("list [page] [size]", "List servers", runServerList),
		action("delete <identifier>", "Delete a server", runServerDelete),
		action("status <identifier>", "Print the power state", runServerStatus),
		action("usage <identifier>", "Print the resource usage", runServerUsage),
		action("power <identifier> <start|stop|restart|kill>", "Send a power signal", runServerPower),
		action("rename <identifier> <name>", "Rename a server", runServerRename),
		action("resources <identifier> [memory=..] [disk=..] [cpu=..]", "Change the build limits", runServerResources),
		action("domain <identifier> <domain>", "Label the primary allocation", runServerDomain),
	)

	access := &cobra.Command{Use: "access", Short: "Manage subuser access"}
	access.AddCommand(
		action("allow <identifier> <email>", "Grant control of a server", runAccessAllow),
		action("disallow <identifier> <email>", "Revoke control of a server", runAccessDisallow),
		action("check <identifier> <email>", "Check whether an account can reach a server", runAccessCheck),
	)

	root.AddCommand(
		user,
		server,
		access,
		action("placement", "Rank the nodes the way the next server would be placed", runPlacement),
	)

	return root
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/r-heap47/gamehost/client"
)

func runUserCreate(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) < 1 || len(args) > 3 {
		return fmt.Errorf("usage: gamehostctl user create <username> [email] [password]")
	}

	req := client.CreateUserRequest{Username: args[0]}
	if len(args) > 1 {
		req.Email = args[1]
	}
	if len(args) > 2 {
		req.Password = args[2]
	}

	u, err := c.CreateUser(ctx, req)
	if err != nil {
		return err
	}

	return printJSON(out, u)
}

func runUserFind(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: gamehostctl user find <username|email|correlation_id|id> <value>")
	}

	u, err := c.FindUser(ctx, args[0], args[1])
	if err != nil {
		if errors.Is(err, client.ErrDoesNotExist) {
			return fmt.Errorf("not found: %s", args[1])
		}
		return err
	}

	return printJSON(out, u)
}

func runUserList(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	page, size, err := parsePage(args)
	if err != nil {
		return fmt.Errorf("usage: gamehostctl user list [page] [size]: %w", err)
	}

	users, err := c.ListUsers(ctx, page, size)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tTAG")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.Tag)
	}

	return tw.Flush()
}

func runUserUpdate(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: gamehostctl user update <email> [username=..] [email=..] [password=..]")
	}

	req, err := parseUserUpdate(args[0], args[1:])
	if err != nil {
		return err
	}

	u, err := c.UpdateUser(ctx, req)
	if err != nil {
		return err
	}

	return printJSON(out, u)
}

func runUserDelete(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: gamehostctl user delete <email>")
	}

	if err := c.DeleteUser(ctx, args[0]); err != nil {
		return err
	}

	fmt.Fprintln(out, "deleted")
	return nil
}

func runUserServers(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: gamehostctl user servers <email>")
	}

	servers, err := c.UserServers(ctx, args[0])
	if err != nil {
		return err
	}

	return printServers(out, servers)
}

func runServerCreate(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) < 5 || len(args) > 6 {
		return fmt.Errorf("usage: gamehostctl server create <name> <owner-email> <egg> <memory-mb> <disk-mb> [cpu-percent]")
	}

	req := client.CreateServerRequest{Name: args[0], OwnerEmail: args[1], Egg: args[2]}

	cpu := "0"
	if len(args) == 6 {
		cpu = args[5]
	}

	var err error
	for _, l := range []struct {
		name string
		arg  string
		dst  *int
	}{
		{"memory", args[3], &req.Memory},
		{"disk", args[4], &req.Disk},
		{"cpu", cpu, &req.CPU},
	} {
		if *l.dst, err = strconv.Atoi(l.arg); err != nil {
			return fmt.Errorf("invalid %s %q: %w", l.name, l.arg, err)
		}
	}

	srv, err := c.CreateServer(ctx, req)
	if err != nil {
		return err
	}

	return printJSON(out, srv)
}

func runServerFind(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: gamehostctl server find <name|uuid|identifier|id|domain> <value>")
	}

	srv, err := c.FindServer(ctx, args[0], args[1])
	if err != nil {
		if errors.Is(err, client.ErrDoesNotExist) {
			return fmt.Errorf("not found: %s", args[1])
		}
		return err
	}

	return printJSON(out, srv)
}

func runServerList(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	page, size, err := parsePage(args)
	if err != nil {
		return fmt.Errorf("usage: gamehostctl server list [page] [size]: %w", err)
	}

	servers, err := c.ListServers(ctx, page, size)
	if err != nil {
		return err
	}

	return printServers(out, servers)
}

func runServerDelete(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: gamehostctl server delete <identifier>")
	}

	if err := c.DeleteServer(ctx, args[0]); err != nil {
		return err
	}

	fmt.Fprintln(out, "deleted")
	return nil
}

func runServerStatus(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: gamehostctl server status <identifier>")
	}

	st, err := c.ServerStatus(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(out, st)
	return nil
}

func runServerUsage(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: gamehostctl server usage <identifier>")
	}

	usage, err := c.ServerUsage(ctx, args[0])
	if err != nil {
		return err
	}

	return printJSON(out, usage)
}

func runServerPower(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: gamehostctl server power <identifier> <start|stop|restart|kill>")
	}

	if err := c.Power(ctx, args[0], args[1]); err != nil {
		return err
	}

	fmt.Fprintln(out, "ok")
	return nil
}

func runServerRename(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: gamehostctl server rename <identifier> <name>")
	}

	if err := c.RenameServer(ctx, args[0], args[1]); err != nil {
		return err
	}

	fmt.Fprintln(out, "ok")
	return nil
}

func runServerResources(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: gamehostctl server resources <identifier> [memory=..] [disk=..] [cpu=..]")
	}

	req, err := parseResources(args[0], args[1:])
	if err != nil {
		return err
	}

	limits, err := c.SetResources(ctx, req)
	if err != nil {
		return err
	}

	return printJSON(out, limits)
}

func runServerDomain(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: gamehostctl server domain <identifier> <domain>")
	}

	updated, err := c.SetDomain(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	if updated {
		fmt.Fprintln(out, "ok")
	} else {
		fmt.Fprintln(out, "no allocation")
	}
	return nil
}

func runAccessAllow(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	return runAccessChange(ctx, "allow", c.Allow, args, out)
}

func runAccessDisallow(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	return runAccessChange(ctx, "disallow", c.Disallow, args, out)
}

func runAccessChange(
	ctx context.Context,
	name string,
	change func(ctx context.Context, identifier, email string) (bool, error),
	args []string,
	out io.Writer,
) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: gamehostctl access %s <identifier> <email>", name)
	}

	changed, err := change(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	if changed {
		fmt.Fprintln(out, "changed")
	} else {
		fmt.Fprintln(out, "unchanged")
	}
	return nil
}

func runAccessCheck(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: gamehostctl access check <identifier> <email>")
	}

	granted, err := c.HasPermission(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Fprintln(out, granted)
	return nil
}

func runPlacement(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: gamehostctl placement")
	}

	candidates, err := c.PreviewPlacement(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tID\tUNUSED_MB\tFLAGS")
	for _, cand := range candidates {
		unused := strconv.FormatInt(cand.UnusedMB, 10)
		if cand.Unknown {
			unused = "?"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", cand.Node, cand.NodeID, unused, candidateFlags(cand))
	}

	return tw.Flush()
}

func candidateFlags(cand *client.Candidate) string {
	var flags []string
	if cand.Maintenance {
		flags = append(flags, "maintenance")
	}
	if cand.Low {
		flags = append(flags, "low")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}

func printServers(out io.Writer, servers []*client.Server) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IDENTIFIER\tNAME\tNODE\tADDRESS")
	for _, s := range servers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Identifier, s.Name, s.Node, s.Address)
	}

	return tw.Flush()
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parsePage reads the optional page and size arguments.
func parsePage(args []string) (page, size int, err error) {
	if len(args) > 2 {
		return 0, 0, errors.New("too many arguments")
	}

	vals := []*int{&page, &size}
	for i, arg := range args {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid number %q", arg)
		}
		*vals[i] = v
	}

	return page, size, nil
}

// parseAssignments splits key=value arguments, rejecting unknown and repeated keys.
func parseAssignments(args []string, allowed ...string) (map[string]string, error) {
	out := make(map[string]string, len(args))

	for _, arg := range args {
		key, val, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}

		known := false
		for _, a := range allowed {
			known = known || a == key
		}
		if !known {
			return nil, fmt.Errorf("unknown field %q, expected one of %s", key, strings.Join(allowed, ", "))
		}

		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("field %q given twice", key)
		}
		out[key] = val
	}

	return out, nil
}

func parseUserUpdate(email string, args []string) (client.UpdateUserRequest, error) {
	fields, err := parseAssignments(args, "username", "email", "password")
	if err != nil {
		return client.UpdateUserRequest{}, err
	}

	req := client.UpdateUserRequest{Email: email}
	if v, ok := fields["username"]; ok {
		req.NewUsername = &v
	}
	if v, ok := fields["email"]; ok {
		req.NewEmail = &v
	}
	if v, ok := fields["password"]; ok {
		req.NewPassword = &v
	}

	return req, nil
}

func parseResources(identifier string, args []string) (client.SetResourcesRequest, error) {
	fields, err := parseAssignments(args, "memory", "disk", "cpu")
	if err != nil {
		return client.SetResourcesRequest{}, err
	}

	req := client.SetResourcesRequest{Identifier: identifier}
	targets := map[string]**int{"memory": &req.Memory, "disk": &req.Disk, "cpu": &req.CPU}

	for key, raw := range fields {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return client.SetResourcesRequest{}, fmt.Errorf("invalid %s %q: %w", key, raw, err)
		}
		*targets[key] = &v
	}

	return req, nil
}

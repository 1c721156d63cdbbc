package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/socialvoid/svclient/client"
	"github.com/socialvoid/svclient/session"
	"golang.org/x/term"
)

type command struct {
	name    string
	args    string
	descr   string
	handler func(ctx context.Context, c *client.Client, args []string, out io.Writer) error
}

func (cmd command) usage() string {
	if cmd.args == "" {
		return cmd.name
	}
	return cmd.name + " " + cmd.args
}

var errUsage = errors.New("invalid arguments")

// readPassword reads a password from the terminal without echoing it.
var readPassword = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var commands = []command{{
	name:  "status",
	descr: "List sessions and probe the current one",
	handler: func(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
		fmt.Fprintf(out, "Client: %s\n", c.Identity())
		cur, hasCur := c.CurrentSessionIndex()
		for i, h := range c.Registry().Sessions() {
			mark := " "
			if hasCur && i == cur {
				mark = "*"
			}
			fmt.Fprintf(out, "%s %d  %-36s %s\n", mark, i, h.ID(), h.State())
		}
		if !hasCur {
			fmt.Fprintln(out, "No current session")
			return nil
		}
		sess, err := c.GetSession(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Server: session %s authenticated=%v flags=%s\n",
			sess.ID, sess.Authenticated, strings.Join(sess.Flags, ","))
		return nil
	},
}, {
	name:  "new",
	descr: "Create a new session",
	handler: func(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
		idx, err := c.NewSession(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Created session %d\n", idx)
		return nil
	},
}, {
	name:  "use",
	args:  "<index>",
	descr: "Select the current session",
	handler: func(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
		if len(args) != 1 {
			return errUsage
		}
		idx, err := strconv.Atoi(args[0])
		if err != nil {
			return errUsage
		}
		return c.SetCurrentSession(idx)
	},
}, {
	name:  "delete",
	descr: "Delete the current session locally",
	handler: func(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
		return c.DeleteSession()
	},
}, {
	name:  "login",
	args:  "<username> [otp]",
	descr: "Log in within the current session",
	handler: func(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
		if len(args) < 1 || len(args) > 2 {
			return errUsage
		}
		var otp *string
		if len(args) == 2 {
			otp = &args[1]
		}
		if _, err := c.EnsureSession(ctx); err != nil {
			return err
		}
		pass, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		if err := c.Authenticate(ctx, args[0], pass, otp); err != nil {
			return err
		}
		fmt.Fprintf(out, "Logged in as %s\n", args[0])
		return nil
	},
}, {
	name:  "logout",
	descr: "Log out and delete the current session",
	handler: func(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
		return c.Logout(ctx)
	},
}, {
	name:  "tos",
	descr: "Show the terms of service",
	handler: func(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
		doc, err := c.Help().TermsOfService(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Terms of service %s\n\n%s\n", doc.ID, doc.Text)
		return nil
	},
}, {
	name:  "register",
	args:  "<username> <first name> [last name]",
	descr: "Accept the terms of service and register a new account",
	handler: func(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
		if len(args) < 2 || len(args) > 3 {
			return errUsage
		}
		if _, err := c.EnsureSession(ctx); err != nil {
			return err
		}
		doc, err := c.Help().TermsOfService(ctx)
		if err != nil {
			return err
		}
		if err := c.AcceptTermsOfService(doc); err != nil {
			return err
		}
		pass, err := readPassword("New password: ")
		if err != nil {
			return err
		}
		req := session.RegisterRequest{
			Username:  args[0],
			Password:  pass,
			FirstName: args[1],
		}
		if len(args) == 3 {
			req.LastName = &args[2]
		}
		peer, err := c.Register(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Registered %s (%s)\n", peer.Username, peer.ID)
		return nil
	},
}, {
	name:  "upload",
	args:  "<file>",
	descr: "Upload a file to the CDN",
	handler: func(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
		if len(args) != 1 {
			return errUsage
		}
		doc, err := c.CDN().UploadFile(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Uploaded %s as %s (%d bytes)\n", doc.FileName, doc.ID, doc.FileSize)
		return nil
	},
}, {
	name:  "download",
	args:  "<document id> <file>",
	descr: "Download a document from the CDN",
	handler: func(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
		if len(args) != 2 {
			return errUsage
		}
		f, err := os.OpenFile(args[1], os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return err
		}
		n, err := c.CDN().Download(ctx, args[0], f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(args[1])
			return err
		}
		fmt.Fprintf(out, "Downloaded %d bytes to %s\n", n, args[1])
		return nil
	},
}}

func findCommand(name string) (*command, bool) {
	for i := range commands {
		if commands[i].name == name {
			return &commands[i], true
		}
	}
	return nil, false
}

// runCommand runs the command named by args[0]. Sessions are saved after
// every command, including failed ones, since recovery may have replaced
// sessions.
func runCommand(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	cmd, ok := findCommand(args[0])
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	err := cmd.handler(ctx, c, args[1:], out)
	if errors.Is(err, errUsage) {
		err = fmt.Errorf("usage: %s %s", appName, cmd.usage())
	}
	if serr := c.SaveSessions(); err == nil {
		err = serr
	}
	return err
}

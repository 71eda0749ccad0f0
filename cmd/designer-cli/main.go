package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go-page-designer/internal/catalog"
	"go-page-designer/internal/clipboard"
	"go-page-designer/internal/config"
	"go-page-designer/internal/dispatcher"
	"go-page-designer/internal/model"
	"go-page-designer/internal/operations"
	"go-page-designer/internal/security"
	"go-page-designer/internal/storage"
	"go-page-designer/internal/templatemanager"
)

// errUsage means the command line was incomplete; usage has been printed.
var errUsage = errors.New("invalid usage")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

type cli struct {
	cfg       *config.Config
	logger    *slog.Logger
	templates *templatemanager.Manager
	in        *bufio.Reader
	out       io.Writer
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	root := flag.NewFlagSet("designer-cli", flag.ContinueOnError)
	root.SetOutput(out)
	configPath := root.String("config", "", "Path to the configuration file (default: ./designer.yaml if present)")
	if err := root.Parse(args); err != nil {
		return errUsage
	}
	if root.NArg() == 0 {
		printUsage(out)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := cfg.Log.NewLogger(os.Stderr)
	store, closeStore, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path, logger)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer closeStore()

	c := &cli{
		cfg:       cfg,
		logger:    logger,
		templates: templatemanager.NewManager(store, logger),
		in:        bufio.NewReader(in),
		out:       out,
	}

	command, rest := root.Arg(0), root.Args()[1:]
	switch command {
	case "list":
		return c.handleList(ctx)
	case "show":
		return c.handleShow(ctx, rest)
	case "create":
		return c.handleCreate(ctx, rest)
	case "delete":
		return c.handleDelete(ctx, rest)
	case "bind":
		return c.handleBind(ctx, rest)
	case "exec":
		return c.handleExec(ctx, rest)
	case "checkout":
		return c.handleCheckout(ctx, rest, true)
	case "checkin":
		return c.handleCheckout(ctx, rest, false)
	case "clone":
		return c.handleClone(ctx, rest)
	default:
		fmt.Fprintf(out, "Unknown command: %s\n", command)
		printUsage(out)
		return errUsage
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: designer-cli [-config <file>] <command> [options]")
	fmt.Fprintln(out, "Available commands:")
	fmt.Fprintln(out, "  list          List all templates")
	fmt.Fprintln(out, "  show -alias <path> | -id <template-id>")
	fmt.Fprintln(out, "                Print a template as JSON")
	fmt.Fprintln(out, "  create -name <name> [-id <id>] [-scope <scope>] [-alias <path>]")
	fmt.Fprintln(out, "                Create an empty template")
	fmt.Fprintln(out, "  delete -id <template-id> [-force]")
	fmt.Fprintln(out, "                Delete a template with its aliases")
	fmt.Fprintln(out, "  bind -alias <path> -id <template-id>")
	fmt.Fprintln(out, "                Point a page at a template")
	fmt.Fprintln(out, "  exec -user <name> [-mode <mode>] <field>...")
	fmt.Fprintln(out, "                Run one designer command; the fields form the callback payload")
	fmt.Fprintln(out, "  checkout -id <template-id> -user <name>")
	fmt.Fprintln(out, "  checkin -id <template-id>")
	fmt.Fprintln(out, "                Take or release the edit lock of a template")
	fmt.Fprintln(out, "  clone -alias <path>")
	fmt.Fprintln(out, "                Give a page its own copy of its template")
}

func subcommand(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

// required prints usage when one of values is empty.
func required(fs *flag.FlagSet, out io.Writer, values map[string]string) error {
	for name, v := range values {
		if v == "" {
			fmt.Fprintf(out, "Error: -%s flag is required for %s command\n", name, fs.Name())
			fs.Usage()
			return errUsage
		}
	}
	return nil
}

func (c *cli) lookupUser(name string) (security.User, error) {
	user, ok := c.cfg.Security.Lookup(name)
	if !ok {
		return security.User{}, fmt.Errorf("unknown user %q", name)
	}
	return user, nil
}

func (c *cli) handleList(ctx context.Context) error {
	templates, err := c.templates.ListTemplates(ctx)
	if err != nil {
		return err
	}
	if len(templates) == 0 {
		fmt.Fprintln(c.out, "No templates found.")
		return nil
	}
	fmt.Fprintln(c.out, "Found templates:")
	for _, t := range templates {
		fmt.Fprintf(c.out, "- ID: %s\n  Name: %s\n  Scope: %s\n  Revision: %d\n  Zones: %d\n  Web parts: %d\n\n",
			t.ID, t.Name, t.Scope, t.Revision, len(t.Zones), len(t.AllWebParts()))
	}
	return nil
}

func (c *cli) handleShow(ctx context.Context, args []string) error {
	fs := subcommand("show", c.out)
	alias := fs.String("alias", "", "Page alias path")
	id := fs.String("id", "", "Template ID")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	var (
		t   *model.TemplateInstance
		err error
	)
	switch {
	case *alias != "":
		t, err = c.templates.LoadTemplateForEditing(ctx, *alias)
	case *id != "":
		t, err = c.templates.LoadTemplate(ctx, *id)
	default:
		fmt.Fprintln(c.out, "Error: -alias or -id flag is required for show command")
		fs.Usage()
		return errUsage
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

func (c *cli) handleCreate(ctx context.Context, args []string) error {
	fs := subcommand("create", c.out)
	name := fs.String("name", "", "Name of the template (required)")
	id := fs.String("id", "", "Template ID (default: generated)")
	scope := fs.String("scope", "unknown", "Template scope: unknown, portal, dashboard or ui")
	alias := fs.String("alias", "", "Page alias path to bind (optional)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := required(fs, c.out, map[string]string{"name": *name}); err != nil {
		return err
	}

	t, err := c.templates.CreateTemplate(ctx, *id, *name, model.ParseTemplateScope(*scope), *alias)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Successfully created template '%s' with ID '%s'\n", t.Name, t.ID)
	return nil
}

func (c *cli) askForConfirmation(prompt string) (bool, error) {
	for {
		fmt.Fprintf(c.out, "%s [y/N]: ", prompt)
		response, err := c.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("reading confirmation: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(response)) {
		case "y", "yes":
			return true, nil
		case "n", "no", "":
			return false, nil
		}
		if errors.Is(err, io.EOF) {
			return false, nil
		}
	}
}

func (c *cli) handleDelete(ctx context.Context, args []string) error {
	fs := subcommand("delete", c.out)
	id := fs.String("id", "", "ID of the template to delete (required)")
	force := fs.Bool("force", false, "Delete without asking")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := required(fs, c.out, map[string]string{"id": *id}); err != nil {
		return err
	}

	t, err := c.templates.LoadTemplate(ctx, *id)
	if err != nil {
		return err
	}
	if !*force {
		ok, err := c.askForConfirmation(fmt.Sprintf("Delete template '%s' (%s) and every page alias bound to it?", t.Name, t.ID))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(c.out, "Operation cancelled.")
			return nil
		}
	}
	if err := c.templates.DeleteTemplate(ctx, t.ID); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Deleted template %s\n", t.ID)
	return nil
}

func (c *cli) handleBind(ctx context.Context, args []string) error {
	fs := subcommand("bind", c.out)
	alias := fs.String("alias", "", "Page alias path (required)")
	id := fs.String("id", "", "Template ID (required)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := required(fs, c.out, map[string]string{"alias": *alias, "id": *id}); err != nil {
		return err
	}
	if err := c.templates.BindAlias(ctx, *alias, *id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Bound %s to template %s\n", *alias, *id)
	return nil
}

// handleExec runs one command through the partial channel. Each process has
// its own clipboard, so copy and paste only pair up inside the server.
func (c *cli) handleExec(ctx context.Context, args []string) error {
	fs := subcommand("exec", c.out)
	userName := fs.String("user", "", "User running the command (required)")
	mode := fs.String("mode", "design", "View mode: live, design, edit, userwidgets, groupwidgets or dashboard")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := required(fs, c.out, map[string]string{"user": *userName}); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(c.out, "Error: exec needs the payload fields")
		fs.Usage()
		return errUsage
	}
	user, err := c.lookupUser(*userName)
	if err != nil {
		return err
	}

	cat, err := catalog.LoadYAML(c.cfg.Catalog.Path)
	if err != nil {
		return err
	}
	gate := security.NewGate(c.cfg.Security.Authorizer(), c.logger)
	d := dispatcher.New(
		operations.NewEngine(cat, gate, c.logger),
		c.templates,
		clipboard.NewManager(c.cfg.Clipboard.TTL, c.cfg.Clipboard.SingleStorage),
		c.cfg.Designer.Enabled,
		c.logger,
	)

	req := dispatcher.Request{User: user, Mode: security.ParseViewMode(*mode), SessionID: "cli"}
	token := d.HandleCallback(ctx, req, strings.Join(fs.Args(), "\n"))
	resp, err := dispatcher.ParseResponse(token)
	if err != nil {
		return err
	}
	switch resp.Status {
	case dispatcher.StatusError, dispatcher.StatusErrorRefresh:
		fmt.Fprintf(c.out, "%s: %s\n", resp.Status, resp.Message)
	case dispatcher.StatusUpdateIDs:
		fmt.Fprintf(c.out, "%s: %s -> %s\n", resp.Status, resp.IDs[0], resp.IDs[1])
	default:
		fmt.Fprintln(c.out, resp.Status)
	}
	if resp.Status == dispatcher.StatusError || resp.Status == dispatcher.StatusUnauthorized {
		return fmt.Errorf("command %s did not run", fs.Arg(0))
	}
	return nil
}

func (c *cli) handleCheckout(ctx context.Context, args []string, take bool) error {
	name := "checkin"
	if take {
		name = "checkout"
	}
	fs := subcommand(name, c.out)
	id := fs.String("id", "", "Template ID (required)")
	userName := fs.String("user", "", "User taking the lock (checkout only)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := required(fs, c.out, map[string]string{"id": *id}); err != nil {
		return err
	}

	if !take {
		if err := c.templates.CheckIn(ctx, *id); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Checked in %s\n", *id)
		return nil
	}
	if err := required(fs, c.out, map[string]string{"user": *userName}); err != nil {
		return err
	}
	user, err := c.lookupUser(*userName)
	if err != nil {
		return err
	}
	if err := c.templates.CheckOut(ctx, *id, user.ID); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Checked out %s to %s\n", *id, user.UserName)
	return nil
}

func (c *cli) handleClone(ctx context.Context, args []string) error {
	fs := subcommand("clone", c.out)
	alias := fs.String("alias", "", "Page alias path (required)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := required(fs, c.out, map[string]string{"alias": *alias}); err != nil {
		return err
	}
	t, err := c.templates.CloneTemplate(ctx, *alias)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Page %s now uses its own template %s\n", *alias, t.ID)
	return nil
}

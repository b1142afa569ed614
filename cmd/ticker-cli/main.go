package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"stockticker/internal/config"
	"stockticker/internal/dashboard"
	"stockticker/internal/domain"
	"stockticker/internal/feed"
	"stockticker/internal/session"
	"stockticker/internal/util"
	"stockticker/pkg/stockticker"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: ticker-cli <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  version    Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "  login      Sign in and store the session token\n")
	fmt.Fprintf(os.Stderr, "  register   Create an account and store the session token\n")
	fmt.Fprintf(os.Stderr, "  logout     Forget the stored session\n")
	fmt.Fprintf(os.Stderr, "  latest     Print the latest snapshot\n")
	fmt.Fprintf(os.Stderr, "  count      Print the number of stored snapshots\n")
	fmt.Fprintf(os.Stderr, "  history    Print a page of snapshots, newest first\n")
	fmt.Fprintf(os.Stderr, "  tail       Stream snapshots from the gRPC feed\n")
	fmt.Fprintf(os.Stderr, "\nRun 'ticker-cli <command> -h' for command options.\n")
}

// env carries what every command needs.
type env struct {
	cfg    *config.Config
	client *stockticker.Client
	store  session.Store
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd, args := os.Args[1], os.Args[2:]

	if cmd == "version" {
		fmt.Printf("ticker-cli %s\n", version)
		return
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to config file")
	apiURL := fs.String("api", "", "API base URL, overrides the config file")

	var run func(ctx context.Context, e *env) error
	switch cmd {
	case "login", "register":
		user := fs.String("u", "", "username")
		pass := fs.String("p", "", "password")
		run = func(ctx context.Context, e *env) error {
			return authenticate(ctx, e, cmd == "register", *user, *pass)
		}
	case "logout":
		run = func(_ context.Context, e *env) error {
			if err := e.store.Clear(); err != nil {
				return err
			}
			fmt.Println("logged out")
			return nil
		}
	case "latest":
		run = latest
	case "count":
		run = count
	case "history":
		page := fs.Int("page", 0, "zero-based page number")
		size := fs.Int("size", 10, "snapshots per page")
		run = func(ctx context.Context, e *env) error {
			return history(ctx, e, *page, *size)
		}
	case "tail":
		addr := fs.String("addr", "", "gRPC feed address (default host:grpc_port from config)")
		run = func(ctx context.Context, e *env) error {
			return tail(ctx, e, *addr)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
	fs.Parse(args)

	cfg, err := config.Load(config.Path(*cfgPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if *apiURL != "" {
		cfg.Client.APIBaseURL = *apiURL
	}
	// Stdout is reserved for command output.
	logger := util.NewLoggerTo(os.Stderr, cfg.Logging)
	if cfg.Logging.File != "" {
		logger = util.NewLogger(cfg.Logging)
	}
	util.SetDefault(logger)

	store, err := session.OpenBadger(cfg.Client.SessionDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening session store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := &env{
		cfg:    cfg,
		client: stockticker.NewClient(cfg.Client.APIBaseURL, cfg.Client.RequestTimeout),
		store:  store,
	}
	if err := run(ctx, e); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", cmd, describe(err))
		store.Close()
		os.Exit(1)
	}
}

// describe prefers the server's message over the wrapped error chain.
func describe(err error) string {
	if msg := stockticker.ServerMessage(err); msg != "" {
		return msg
	}
	return err.Error()
}

func authenticate(ctx context.Context, e *env, register bool, user, pass string) error {
	if user == "" || pass == "" {
		return errors.New("-u and -p are required")
	}
	var (
		data stockticker.LoginData
		err  error
	)
	if register {
		data, err = e.client.Register(ctx, user, pass)
	} else {
		data, err = e.client.Login(ctx, user, pass)
	}
	if err != nil {
		return err
	}
	if err := e.store.Save(session.Session{Token: data.Token, Username: data.Username}); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	fmt.Printf("signed in as %s\n", data.Username)
	return nil
}

// token returns the stored session token.
func (e *env) token() (string, error) {
	sess, err := e.store.Load()
	if err != nil {
		return "", fmt.Errorf("loading session: %w", err)
	}
	if !sess.Authenticated() {
		return "", errors.New("not signed in, run 'ticker-cli login' first")
	}
	return sess.Token, nil
}

func latest(ctx context.Context, e *env) error {
	tok, err := e.token()
	if err != nil {
		return err
	}
	snap, err := e.client.Latest(ctx, tok)
	if err != nil {
		return err
	}
	printSnapshot(snap)
	return nil
}

func count(ctx context.Context, e *env) error {
	tok, err := e.token()
	if err != nil {
		return err
	}
	n, err := e.client.Count(ctx, tok)
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}

func history(ctx context.Context, e *env, page, size int) error {
	tok, err := e.token()
	if err != nil {
		return err
	}
	snaps, err := e.client.History(ctx, tok, page, size)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Println("no snapshots")
		return nil
	}
	for i, s := range snaps {
		if i > 0 {
			fmt.Println()
		}
		printSnapshot(s)
	}
	return nil
}

func tail(ctx context.Context, e *env, addr string) error {
	if addr == "" {
		if e.cfg.Server.GRPCPort <= 0 {
			return errors.New("gRPC feed is disabled in config, pass -addr")
		}
		addr = net.JoinHostPort(e.cfg.Server.Host, strconv.Itoa(e.cfg.Server.GRPCPort))
	}
	c := feed.NewClient(addr, slog.Default())
	err := c.Tail(ctx, func(s domain.Snapshot) error {
		printSnapshot(s)
		fmt.Println()
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printSnapshot(s domain.Snapshot) {
	fmt.Printf("#%d  %s\n", s.ID, s.Timestamp.Format(stockticker.TimestampLayout))
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, sym := range s.Symbols {
		fmt.Fprintf(tw, "  %s\t%s\n", sym, dashboard.FormatPrice(s.Prices[sym]))
	}
	tw.Flush()
}

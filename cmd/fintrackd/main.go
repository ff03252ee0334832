package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"golang.org/x/sync/errgroup"

	"github.com/fintrack/fintrack"
	"github.com/fintrack/fintrack/pkg/auth"
	"github.com/fintrack/fintrack/pkg/constants"
	"github.com/fintrack/fintrack/pkg/docstore"
	"github.com/fintrack/fintrack/pkg/docstore/memstore"
	"github.com/fintrack/fintrack/pkg/docstore/sqlstore"
	"github.com/fintrack/fintrack/pkg/logger"
	"github.com/fintrack/fintrack/pkg/server"
)

const Version = "0.1.0"

const EnvSecret = "FINTRACK_SECRET"

const usage = `fintrackd serves a fintrack document store over websockets.

The token secret is read from --secret or FINTRACK_SECRET.

Usage:
    fintrackd serve [--addr=<addr>] [--store=<url>] [--secret=<secret>]
        [--log-level=<level>] [--log-path=<path>]
    fintrackd token <uid> [--secret=<secret>] [--ttl=<ttl>] [--anonymous]
    fintrackd -h | --help
    fintrackd --version

Options:
    -h --help             Show this screen.
    --version             Show version.
    --addr=<addr>         Listen address [default: :8080].
    --store=<url>         memory:// or postgres://... [default: memory://].
    --secret=<secret>     HS256 token secret.
    --log-level=<level>   debug, info, warn or error [default: info].
    --log-path=<path>     Log file, stdout when unset.
    --ttl=<ttl>           Token lifetime [default: 24h].
    --anonymous           Mark the token's user as anonymous.`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "fintrackd: %s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, argv []string, out io.Writer) error {
	parser := &docopt.Parser{HelpHandler: docopt.PrintHelpAndExit}
	opts, err := parser.ParseArgs(usage, argv, Version)
	if err != nil {
		return err
	}

	secret := optString(opts, "--secret")
	if secret == "" {
		secret = fintrack.GetEnvOrDefault(EnvSecret, "")
	}

	if token, _ := opts.Bool("token"); token {
		return issueToken(opts, secret, out)
	}
	if serve_, _ := opts.Bool("serve"); serve_ {
		return serve(ctx, opts, secret)
	}
	return nil
}

func optString(opts docopt.Opts, key string) string {
	if v, ok := opts[key].(string); ok {
		return v
	}
	return ""
}

func issueToken(opts docopt.Opts, secret string, out io.Writer) error {
	if secret == "" {
		return errors.New("a token secret is required")
	}
	ttl, err := time.ParseDuration(optString(opts, "--ttl"))
	if err != nil {
		return fmt.Errorf("invalid --ttl: %w", err)
	}
	anonymous, _ := opts.Bool("--anonymous")

	issuer := auth.NewIssuer([]byte(secret), auth.WithTTL(ttl))
	token, err := issuer.Issue(auth.User{UID: optString(opts, "<uid>"), Anonymous: anonymous})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func openStore(ctx context.Context, storeURL string, l logger.Logger) (docstore.Store, error) {
	u, err := url.Parse(storeURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case constants.MemoryScheme:
		return memstore.New(memstore.WithRules(docstore.OwnerRules), memstore.WithLogger(l)), nil
	case constants.PostgresScheme, constants.PostgresAltScheme:
		return sqlstore.Open(ctx, storeURL, sqlstore.WithRules(docstore.OwnerRules), sqlstore.WithLogger(l))
	default:
		return nil, fmt.Errorf("%w: %q", constants.ErrUnsupportedScheme, u.Scheme)
	}
}

func serve(ctx context.Context, opts docopt.Opts, secret string) error {
	logData, err := logger.New().
		FromPath(optString(opts, "--log-path")).
		WithLevelName(optString(opts, "--log-level")).
		Make()
	if err != nil {
		return err
	}
	defer logData.Close()

	store, err := openStore(ctx, optString(opts, "--store"), logData)
	if err != nil {
		return err
	}
	defer store.Close()

	serverOpts := []server.Option{server.WithLogger(logData)}
	if secret != "" {
		serverOpts = append(serverOpts, server.WithVerifier(auth.NewIssuer([]byte(secret))))
	} else {
		logData.Warn("no token secret set, sessions cannot authenticate")
	}
	rpc := server.New(store, serverOpts...)

	addr := optString(opts, "--addr")
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           rpc,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logData.Info("listening", "addr", addr, "version", Version)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logData.Info("shutting down")
		rpc.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

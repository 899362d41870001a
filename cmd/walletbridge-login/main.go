// Command walletbridge-login signs in to a walletbridge server with a local
// private key and prints the resulting session.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/layer-3/walletbridge/adapters/wallet"
	"github.com/layer-3/walletbridge/client"
	"github.com/layer-3/walletbridge/config"
	"github.com/layer-3/walletbridge/logging"
	"github.com/spf13/cobra"
)

type options struct {
	server     string
	keyHex     string
	domain     string
	uri        string
	chainID    int64
	configPath string
	signOut    bool
	logLevel   string
	timeout    time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "walletbridge-login",
		Short:        "Sign in to a walletbridge server with a local wallet key",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.server, "server", "http://localhost:9000", "walletbridge base URL")
	flags.StringVar(&opts.keyHex, "key", os.Getenv("WALLETBRIDGE_WALLET_KEY"), "hex secp256k1 private key")
	flags.StringVar(&opts.domain, "domain", "localhost:9000", "domain presented in the signed message")
	flags.StringVar(&opts.uri, "uri", "http://localhost:9000", "URI presented in the signed message")
	flags.Int64Var(&opts.chainID, "chain-id", 1, "chain id presented in the signed message")
	flags.StringVar(&opts.configPath, "config", "", "optional YAML config supplying the client window")
	flags.BoolVar(&opts.signOut, "signout", false, "revoke the session before exiting")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall timeout")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	if opts.keyHex == "" {
		return errors.New("--key or WALLETBRIDGE_WALLET_KEY is required")
	}

	logger := logging.New(opts.logLevel, true)

	window := client.Window{}
	if opts.configPath != "" {
		cfg, err := config.Load(opts.configPath)
		if err != nil {
			return err
		}
		window = client.Window{Expiration: cfg.Client.Expiration, NotBeforeSkew: cfg.Client.NotBeforeSkew}
	}

	signer, err := wallet.NewLocalSignerFromHex(strings.TrimPrefix(opts.keyHex, "0x"), opts.domain, opts.uri, opts.chainID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	endpoint := client.NewHTTPSessionEndpoint(opts.server, nil, logging.Component(logger, "session"))
	auth := client.NewAuthenticator(
		client.NewHTTPBridge(opts.server, nil),
		signer,
		endpoint,
		window,
		logging.Component(logger, "auth"),
	)
	holder := client.NewSessionHolder(auth, endpoint, logger)
	defer holder.Close()

	settled := make(chan client.Snapshot, 1)
	holder.Subscribe(func(s client.Snapshot) {
		if s.State == client.StateAuthenticated || s.State == client.StateUnauthenticated {
			select {
			case settled <- s:
			default:
			}
		}
	})

	logger.Info().Str("address", signer.Address().Hex()).Str("server", opts.server).Msg("signing in")
	if err := holder.Start(ctx); err != nil {
		return err
	}

	var snap client.Snapshot
	select {
	case snap = <-settled:
	case <-ctx.Done():
		return fmt.Errorf("sign-in did not finish: %w", ctx.Err())
	}
	if snap.State != client.StateAuthenticated {
		return client.ErrAuthenticationFailed
	}

	me, err := endpoint.Me(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch account: %w", err)
	}

	out, err := json.MarshalIndent(map[string]any{
		"session": snap.Identity,
		"account": me,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if opts.signOut {
		if err := endpoint.SignOut(ctx); err != nil {
			return err
		}
		logger.Info().Msg("signed out")
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/zeusync/lockstep/internal/app"
	"github.com/zeusync/lockstep/internal/config"
	"github.com/zeusync/lockstep/internal/core/observability/log"
	"github.com/zeusync/lockstep/internal/core/protocol"
	"github.com/zeusync/lockstep/internal/core/protocol/quic"
	"github.com/zeusync/lockstep/internal/core/protocol/websocket"
	"github.com/zeusync/lockstep/internal/injector"
	"github.com/zeusync/lockstep/internal/server"
)

type options struct {
	config  string
	tlsCert string
	tlsKey  string
}

func main() {
	var opts options
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Run an authoritative lockstep server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "server vars yaml file")
	cmd.Flags().StringVar(&opts.tlsCert, "tls-cert", "", "certificate for the quic listener")
	cmd.Flags().StringVar(&opts.tlsKey, "tls-key", "", "key for the quic listener")
	cmd.AddCommand(newVarsCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// newVarsCommand prints the effective server vars: file values with
// environment overrides applied.
func newVarsCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "vars",
		Short: "Print the effective server vars as yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			vars, err := config.Load(path)
			if err != nil {
				return err
			}
			return config.Save(cmd.OutOrStdout(), vars)
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "server vars yaml file")
	return cmd
}

func run(ctx context.Context, opts options) error {
	a, cleanup, err := injector.InitializeApp(app.ConfigPath(opts.config))
	if err != nil {
		return err
	}
	defer cleanup()
	logger := a.Logger

	srv, err := server.New(a.ServerDeps())
	if err != nil {
		return err
	}

	var listeners []protocol.Listener
	if addr := a.Vars.WebsocketAddr; addr != "" {
		ws := websocket.NewListener(srv.Inbox(), websocket.DefaultConfig(), logger)
		status := srv.StatusHandler()
		mux := http.NewServeMux()
		mux.Handle(websocket.DefaultConfig().Path, ws)
		mux.Handle("/status", status)
		mux.Handle("/ready", status)
		mux.Handle("/chat", status)
		httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server stopped", log.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()
		logger.Info("websocket and status endpoints listening", log.String("addr", addr))
		listeners = append(listeners, ws)
	}
	if addr := a.Vars.QuicAddr; addr != "" {
		cfg := quic.DefaultConfig()
		if opts.tlsCert != "" {
			if cfg.TLS, err = quic.LoadTLS(opts.tlsCert, opts.tlsKey); err != nil {
				return err
			}
		}
		ql, err := quic.Listen(addr, srv.Inbox(), cfg, logger)
		if err != nil {
			return err
		}
		listeners = append(listeners, ql)
	}

	err = srv.Run(ctx, listeners...)
	logger.Info("server stopped", log.String("session", srv.Session().String()))
	return err
}

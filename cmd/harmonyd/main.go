// Command harmonyd is Harmony's process entrypoint: parse/validate
// configuration, build the service and middleware registries, spawn one
// adapter per declared network under a shared cancellation context, and
// wait for Ctrl-C (spec §4.9). Grounded on cmd/main.go's flag-driven
// single-binary shape, generalized to spf13/cobra's serve/validate
// subcommands (SPEC_FULL.md §6.1).
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/aurabx/harmony/internal/config"
	"github.com/aurabx/harmony/internal/jmix"
	"github.com/aurabx/harmony/internal/mgmt"
	"github.com/aurabx/harmony/internal/middleware"
	middlewarebuiltin "github.com/aurabx/harmony/internal/middleware/builtin"
	"github.com/aurabx/harmony/internal/observability"
	"github.com/aurabx/harmony/internal/orchestrator"
	"github.com/aurabx/harmony/internal/pipeline"
	"github.com/aurabx/harmony/internal/services"
	servicebuiltin "github.com/aurabx/harmony/internal/services/builtin"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "harmonyd",
		Short:         "Harmony protocol gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "harmony.toml", "path to the configuration file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newValidateCmd(&configPath))
	return root
}

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate the configuration without starting any adapter",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(*configPath); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			fmt.Println("configuration OK")
			return nil
		},
	}
}

func newServeCmd(configPath *string) *cobra.Command {
	var grpcAddr string
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*configPath, grpcAddr, httpAddr)
		},
	}
	cmd.Flags().StringVar(&grpcAddr, "mgmt-grpc-addr", "", "bind address for the gRPC management surface (empty disables it)")
	cmd.Flags().StringVar(&httpAddr, "mgmt-http-addr", "127.0.0.1:9090", "bind address for the /info, /pipelines, /routes JSON listings")
	return cmd
}

// serve wires every SPEC_FULL.md §4.9 process-start step in order: parse/
// validate config, build the service/middleware registries, initialize the
// shared jmix index/builder (the process-wide storage backend the
// jmix_builder middleware type closes over), build and run the
// orchestrator under a signal-derived cancellation context, and bring up
// the additive gRPC management surface alongside it.
func serve(configPath, grpcAddr, httpAddr string) error {
	logger := observability.NewLogger("info")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("harmonyd: loading config: %w", err)
	}

	reg := services.NewRegistry()
	servicebuiltin.Register(reg)

	types := middleware.NewTypeRegistry()
	middlewarebuiltin.Register(types)

	idx, err := jmix.Open(filepath.Join(cfg.Proxy.StoreDir, "jmix-index.db"))
	if err != nil {
		return fmt.Errorf("harmonyd: opening jmix index: %w", err)
	}
	builder := jmix.NewBuilder(cfg.Proxy.StoreDir, idx)
	middlewarebuiltin.RegisterJmixBuilder(types, builder)

	exec := pipeline.NewExecutor(reg, cfg, logger)

	orch := orchestrator.New(cfg, reg, types, exec, logger)
	if err := orch.Build(); err != nil {
		return fmt.Errorf("harmonyd: building adapters: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgmtSvc := mgmt.New(cfg, orch)
	if httpAddr != "" {
		r := chi.NewRouter()
		mgmt.Mount(r, "", mgmtSvc)
		mgmtHTTP := &http.Server{Addr: httpAddr, Handler: r}
		lis, err := net.Listen("tcp", httpAddr)
		if err != nil {
			return fmt.Errorf("harmonyd: binding mgmt HTTP listener: %w", err)
		}
		go func() {
			<-ctx.Done()
			_ = mgmtHTTP.Close()
		}()
		go func() {
			if err := mgmtHTTP.Serve(lis); err != nil && err != http.ErrServerClosed {
				logger.Warn("harmonyd: mgmt HTTP server stopped", "error", err.Error())
			}
		}()
		logger.Info("harmonyd: mgmt HTTP surface listening", "addr", httpAddr)
	}
	if grpcAddr != "" {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return fmt.Errorf("harmonyd: binding mgmt gRPC listener: %w", err)
		}
		grpcServer := mgmt.NewGRPCServer(mgmtSvc)
		go func() {
			<-ctx.Done()
			grpcServer.GracefulStop()
		}()
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				logger.Warn("harmonyd: mgmt gRPC server stopped", "error", err.Error())
			}
		}()
		logger.Info("harmonyd: mgmt gRPC surface listening", "addr", grpcAddr)
	}

	logger.Info("harmonyd: starting",
		"networks", len(orch.HTTPAdapters()),
		"dimse_scps", len(orch.DimseSCPs()))

	return orch.Run(ctx)
}

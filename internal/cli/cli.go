// ============================================================================
// Fleetd CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra-based entry point wiring internal/worker, internal/master,
// internal/counter, internal/transport and internal/metrics into a runnable
// process, mirroring the teacher's internal/cli.BuildCLI structure (root
// command + run/status subcommands, YAML config loaded from --config).
//
// Command Structure:
//   fleetd                          # Root command
//   ├── run                         # Start a master or worker node
//   │   └── --mode master|worker
//   └── status                      # Print resolved configuration
//
// Configuration Management:
//   YAML config file (default: configs/default.yaml), sections:
//   - node: this process's own address and working directory
//   - master: the master's address (dialed by workers, bound by masters)
//   - file_transport: address for the push-file side-channel
//   - counter: working dir and RPC prefix for the two-tier counter
//   - metrics: enabled flag and port
//
// run --mode master:
//   1. Load config
//   2. Build master.Master + counter.Server, register both onto one
//      transport.RPCServer
//   3. Start the HTTP file-receive server
//   4. Start the metrics HTTP server (if enabled)
//   5. Listen for SIGINT/SIGTERM, then shut everything down in reverse order
//
// run --mode worker:
//   1. Load config
//   2. Build a worker.Context + worker.Node, dialing the master over
//      transport.RPCClient for heartbeats
//   3. Register the node's RPC surface on a transport.RPCServer
//   4. Start the heartbeat loop
//   5. Listen for SIGINT/SIGTERM, then call node.Shutdown()
//
// ============================================================================

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hiveworks/fleetd/internal/counter"
	"github.com/hiveworks/fleetd/internal/master"
	"github.com/hiveworks/fleetd/internal/metrics"
	"github.com/hiveworks/fleetd/internal/transport"
	"github.com/hiveworks/fleetd/internal/worker"
	"github.com/hiveworks/fleetd/pkg/types"
)

// Config is the complete fleetd process configuration, loaded from YAML.
type Config struct {
	Node struct {
		Addr       string `yaml:"addr"`
		WorkingDir string `yaml:"working_dir"`
		// LocalMode mirrors the original's ctx.is_local_mode: when true, a
		// job descriptor's "clear" flag removes a pre-existing per-run
		// working dir instead of picking a fresh suffix (spec.md §4.1 step
		// 5). False in a real distributed deployment.
		LocalMode bool `yaml:"local_mode"`
	} `yaml:"node"`

	Master struct {
		Addr string `yaml:"addr"`
	} `yaml:"master"`

	FileTransport struct {
		Addr string `yaml:"addr"`
	} `yaml:"file_transport"`

	Counter struct {
		WorkingDir string `yaml:"working_dir"`
		Prefix     string `yaml:"prefix"`
	} `yaml:"counter"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
}

var configFile string

// BuildCLI assembles the fleetd root command.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fleetd",
		Short: "fleetd: a distributed crawl/job execution cluster",
		Long: `fleetd coordinates a fleet of worker nodes executing named jobs, with:
- A master registry tracking heartbeats and fleet membership
- Worker-side job lifecycle (prepare/run/stop/clear)
- A two-tier distributed counter (per-worker staging + global merge)
- Prometheus metrics`,
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildStatusCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a fleetd node",
		Long:  "Start the process in master or worker mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSystem(mode)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "worker", "Node mode: master, worker")

	return cmd
}

func runSystem(mode string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting fleetd", "mode", mode, "config", configFile)

	if mode == "master" {
		return runMaster(cfg)
	}
	return runWorker(cfg)
}

func runMaster(cfg *Config) error {
	rpcServer := transport.NewRPCServer(cfg.Node.Addr)

	m := master.New()
	m.RegisterRPC(rpcServer)

	counterSrv, err := counter.NewServer(cfg.Counter.WorkingDir)
	if err != nil {
		return fmt.Errorf("failed to start counter server: %w", err)
	}
	counterSrv.RegisterRPC(rpcServer, cfg.Counter.Prefix)

	fileServer := transport.NewHTTPFileServer(cfg.FileTransport.Addr, cfg.Node.WorkingDir)

	if cfg.Metrics.Enabled {
		metrics.NewCollector()
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Port); err != nil {
				slog.Error("metrics server stopped", "err", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := rpcServer.Serve(ctx); err != nil {
			slog.Error("rpc server stopped", "err", err)
		}
	}()
	go func() {
		if err := fileServer.Serve(ctx); err != nil {
			slog.Error("file transport server stopped", "err", err)
		}
	}()

	slog.Info("master started", "addr", cfg.Node.Addr, "file_addr", cfg.FileTransport.Addr)
	waitForSignal()

	slog.Info("master shutting down")
	cancel()
	rpcServer.Shutdown()
	fileServer.Shutdown()
	return counterSrv.Shutdown()
}

func runWorker(cfg *Config) error {
	if cfg.Master.Addr == "" {
		return fmt.Errorf("master address is required in worker mode")
	}

	addr := types.Address(cfg.Node.Addr)
	ip := ipFromAddr(addr)
	ctx0 := worker.NewContext(cfg.Node.WorkingDir, addr, ip)
	ctx0.LocalMode = cfg.Node.LocalMode

	masterClient := transport.NewRPCClient(cfg.Master.Addr)
	defer masterClient.Close()

	fileClient := transport.NewHTTPFileClient()
	heartbeat := worker.NewRPCHeartbeatClient(masterClient)

	node := worker.NewNode(worker.NodeConfig{
		Context:    ctx0,
		MasterAddr: types.Address(cfg.Master.Addr),
		FileClient: fileClient,
		Heartbeat:  heartbeat,
	})

	rpcServer := transport.NewRPCServer(cfg.Node.Addr)
	node.RegisterRPC(rpcServer)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := rpcServer.Serve(ctx); err != nil {
			slog.Error("rpc server stopped", "err", err)
		}
	}()

	node.StartHeartbeat()

	slog.Info("worker started", "addr", cfg.Node.Addr, "master", cfg.Master.Addr)
	waitForSignal()

	slog.Info("worker shutting down")
	node.Shutdown()
	cancel()
	return rpcServer.Shutdown()
}

func waitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
}

// ipFromAddr strips the port from "host:port", matching
// internal/master.ipFromAddr.
func ipFromAddr(addr types.Address) types.IP {
	s := string(addr)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return types.IP(s[:i])
		}
	}
	return types.IP(s)
}

func buildStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show resolved configuration status",
		Long:  "Display the config that `run` would use, without starting anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus()
		},
	}
	return cmd
}

func showStatus() error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("fleetd status")
	fmt.Printf("  config file:         %s\n", configFile)
	fmt.Printf("  node addr:           %s\n", cfg.Node.Addr)
	fmt.Printf("  node working dir:    %s\n", cfg.Node.WorkingDir)
	fmt.Printf("  master addr:         %s\n", cfg.Master.Addr)
	fmt.Printf("  file transport:      %s\n", cfg.FileTransport.Addr)
	fmt.Printf("  counter working dir: %s\n", cfg.Counter.WorkingDir)
	fmt.Printf("  counter prefix:      %q\n", cfg.Counter.Prefix)
	if cfg.Metrics.Enabled {
		fmt.Printf("  metrics:             enabled on :%d\n", cfg.Metrics.Port)
	} else {
		fmt.Println("  metrics:             disabled")
	}
	return nil
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return &cfg, nil
}

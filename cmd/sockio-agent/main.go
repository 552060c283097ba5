// Command sockio-agent is a demonstration long-running process that holds
// one sockio.Client connection open, optionally installed as an OS
// service. It exists to exercise the library end-to-end, not as a
// general-purpose Socket.IO proxy.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kardianos/service"

	"github.com/duskport/sockio"
	"github.com/duskport/sockio/sockioconfig"
)

const (
	serviceName        = "SockioAgent"
	serviceDisplayName = "Sockio Agent"
	serviceDescription = "Maintains a Socket.IO client connection and logs connection lifecycle events"
)

// agent implements kardianos/service.Interface.
type agent struct {
	cfg    *sockioconfig.FileConfig
	cancel context.CancelFunc
}

func (a *agent) Start(s service.Service) error {
	go a.run()
	return nil
}

func (a *agent) Stop(s service.Service) error {
	slog.Info("service stop requested")
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}

func (a *agent) run() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	defer cancel()

	if err := runAgent(ctx, a.cfg); err != nil {
		slog.Error("agent exited with error", "error", err)
		os.Exit(1)
	}
}

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (default: "+sockioconfig.DefaultConfigPath+")")
		doInstall  = flag.Bool("install", false, "install as an OS service")
		doUninstall = flag.Bool("uninstall", false, "uninstall the OS service")
		doRun      = flag.Bool("run", false, "run in foreground (non-service mode)")
	)
	flag.Parse()

	initLogger("info")

	cfg, err := sockioconfig.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	initLogger(cfg.LogLevel)

	svcConfig := &service.Config{
		Name:        serviceName,
		DisplayName: serviceDisplayName,
		Description: serviceDescription,
		Arguments:   []string{},
	}

	ag := &agent{cfg: cfg}
	svc, err := service.New(ag, svcConfig)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	switch {
	case *doInstall:
		if err := svc.Install(); err != nil {
			slog.Error("failed to install service", "error", err)
			os.Exit(1)
		}
		fmt.Println("Service installed successfully:", serviceName)
		return

	case *doUninstall:
		if err := svc.Stop(); err != nil {
			slog.Warn("failed to stop service (may not be running)", "error", err)
		}
		if err := svc.Uninstall(); err != nil {
			slog.Error("failed to uninstall service", "error", err)
			os.Exit(1)
		}
		fmt.Println("Service uninstalled successfully:", serviceName)
		return

	case *doRun:
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		slog.Info("starting sockio-agent in foreground mode")
		if err := runAgent(ctx, cfg); err != nil {
			slog.Error("agent exited with error", "error", err)
			os.Exit(1)
		}
		return

	default:
		if service.Interactive() {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			fmt.Println("sockio-agent is running. Press Ctrl+C to stop.")
			if err := runAgent(ctx, cfg); err != nil {
				slog.Error("agent error", "error", err)
				os.Exit(1)
			}
		} else {
			if err := svc.Run(); err != nil {
				slog.Error("service run failed", "error", err)
				os.Exit(1)
			}
		}
	}
}

// runAgent connects one sockio.Client per the loaded config, logs its
// status transitions and incoming events until ctx is cancelled, then
// disconnects cleanly.
func runAgent(ctx context.Context, cfg *sockioconfig.FileConfig) error {
	opts, err := cfg.Options()
	if err != nil {
		return fmt.Errorf("building client options: %w", err)
	}
	opts = append(opts, sockio.WithLogger(slog.Default()))

	client := sockio.New(cfg.ServerURL, opts...)

	client.OnStatusChange(func(s sockio.Status) {
		slog.Info("connection status changed", "status", s.String())
	})
	client.On("message", func(args []interface{}, ack sockio.AckEmitter) {
		slog.Info("received message event", "args", args)
		if ack != nil {
			ack("received")
		}
	})
	client.OnAny(func(event string, args []interface{}) {
		slog.Debug("event dispatched", "event", event, "argCount", len(args))
	})

	slog.Info("connecting", "server", cfg.ServerURL, "namespace", cfg.Namespace)
	client.Connect(ctx)

	<-ctx.Done()

	slog.Info("shutting down, disconnecting client")
	disconnectCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Disconnect(disconnectCtx)
	return client.Close()
}

func initLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

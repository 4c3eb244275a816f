package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/1broseidon/backdrop/internal/config"
	"github.com/1broseidon/backdrop/internal/cycler"
	"github.com/1broseidon/backdrop/internal/daemon"
	"github.com/1broseidon/backdrop/internal/hotkeys"
	"github.com/1broseidon/backdrop/internal/ipc"
	"github.com/1broseidon/backdrop/internal/logging"
	"github.com/1broseidon/backdrop/internal/platform"
	"github.com/1broseidon/backdrop/internal/render"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "monitors":
		os.Exit(runMonitors(os.Args[2:]))
	case "list":
		os.Exit(runList(os.Args[2:]))
	case "next":
		os.Exit(runTarget("next", os.Args[2:]))
	case "refresh":
		os.Exit(runTarget("refresh", os.Args[2:]))
	case "render":
		os.Exit(runRender(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: backdrop <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the backdrop daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  monitors            List monitors known to the daemon")
	fmt.Fprintln(w, "  list                List cached backdrops")
	fmt.Fprintln(w, "  next                Advance the slideshow")
	fmt.Fprintln(w, "  refresh             Re-render backdrops")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  render              Render one backdrop to an image file (no daemon needed)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config get          Print one property")
	fmt.Fprintln(w, "  config set          Set one property")
	fmt.Fprintln(w, "  config reset        Remove one property")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'backdrop <command> --help' for command-specific options.")
}

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "Config file path (default: ~/.config/backdrop/config.yaml)")
	logLevel := fs.String("log-level", "", "Override log_level (debug, info, warn, error)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: backdrop daemon [--config PATH] [--log-level LEVEL]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run the backdrop daemon in the foreground. SIGHUP reloads the config.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	store, err := openStore(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := store.Config()

	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	logger := logging.Setup(logging.ParseFormat(cfg.LogFormat), logging.ParseLevel(level))
	log.Printf("Configuration loaded from %s", store.Path())

	if cfg.XAuthority != "" {
		os.Setenv("XAUTHORITY", cfg.XAuthority)
	}

	// Connect to display server
	backend, err := platform.NewLinuxBackendFromDisplay(cfg.Display)
	if err != nil {
		log.Fatalf("Failed to connect to display: %v", err)
	}
	defer backend.Disconnect()

	d := daemon.New(daemon.Options{
		Backend: backend,
		Store:   store,
		Renderer: render.New(render.Options{
			ChunkSize: cfg.RenderChunkSize,
			Logger:    logger,
		}),
		Screen:            cfg.Screen,
		PaintRoot:         cfg.GetPaintRoot(),
		ReconcileInterval: time.Duration(cfg.ReconcileIntervalSeconds) * time.Second,
		WatchConfig:       true,
		Logger:            logger,
		Cycler:            cycler.Options{Logger: logger},
	})

	hotkeys.NewHandler(backend).RegisterAll(hotkeys.Bindings{
		Next:    cfg.NextHotkey,
		Refresh: cfg.RefreshHotkey,
	}, hotkeys.Actions{
		Next:    func() error { return d.Cycle(ipc.TargetPayload{}) },
		Refresh: func() error { return d.Invalidate(ipc.TargetPayload{}) },
	})

	// Start IPC server
	ipcServer, err := ipc.NewServer(d)
	if err != nil {
		log.Fatalf("Failed to create IPC server: %v", err)
	}
	if err := ipcServer.Start(); err != nil {
		log.Fatalf("Failed to start IPC server: %v", err)
	}
	defer ipcServer.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handlers
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				log.Println("Received SIGHUP, reloading config...")
				if err := d.Reload(); err != nil {
					log.Printf("Config reload failed: %v", err)
					continue
				}
				log.Println("Config reloaded successfully")
			case os.Interrupt, syscall.SIGTERM:
				log.Println("Shutting down backdrop daemon...")
				cancel()
				return
			}
		}
	}()

	// The X event loop delivers topology and desktop changes to the daemon.
	go backend.EventLoop()

	log.Println("backdrop daemon started successfully")
	if err := d.Run(ctx); err != nil {
		log.Printf("Daemon error: %v", err)
		return 1
	}
	return 0
}

func openStore(path string) (*config.Store, error) {
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}
	return config.OpenStore(path)
}

// parseFlags parses args with the usual help and positional-argument
// handling, returning the exit code to use when parsing did not succeed.
func parseFlags(fs *flag.FlagSet, args []string, maxArgs int) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0, false
		}
		return 2, false
	}
	if fs.NArg() > maxArgs {
		fmt.Fprintf(os.Stderr, "%s: unexpected arguments: %s\n", fs.Name(), strings.Join(fs.Args()[maxArgs:], " "))
		fs.Usage()
		return 2, false
	}
	return 0, true
}

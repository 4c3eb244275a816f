package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/1broseidon/backdrop/internal/ipc"
)

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: backdrop status")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if code, ok := parseFlags(fs, args, 0); !ok {
		return code
	}

	client := ipc.NewClient()
	status, err := client.GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("daemon_running:    %v\n", status.DaemonRunning)
	fmt.Printf("uptime_seconds:    %d\n", status.UptimeSeconds)
	fmt.Printf("monitors:          %d\n", status.MonitorCount)
	fmt.Printf("current_workspace: %d\n", status.CurrentWorkspace)
	fmt.Printf("cached_backdrops:  %d\n", status.CachedBackdrops)
	fmt.Printf("in_flight_renders: %d\n", status.InFlightRenders)
	if status.ConfigPath != "" {
		fmt.Printf("config:            %s\n", status.ConfigPath)
	}
	if len(status.Workspaces) > 0 {
		fmt.Println("workspaces:")
		for _, ws := range status.Workspaces {
			marker := " "
			if ws.Current {
				marker = "*"
			}
			name := ws.Name
			if name == "" {
				name = "-"
			}
			fmt.Printf("  %s %d  %s\n", marker, ws.Number, name)
		}
	}
	return 0
}

func runMonitors(args []string) int {
	fs := flag.NewFlagSet("monitors", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: backdrop monitors [--json]")
	}
	if code, ok := parseFlags(fs, args, 0); !ok {
		return code
	}

	data, err := ipc.NewClient().GetMonitors()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(os.Stdout, data.Monitors)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGEOMETRY\tSCALE")
	for _, m := range data.Monitors {
		fmt.Fprintf(tw, "%s\t%dx%d+%d+%d\t%g\n", m.ID, m.Width, m.Height, m.X, m.Y, m.Scale)
	}
	tw.Flush()
	return 0
}

func runList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: backdrop list [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "List the daemon's backdrop cache.")
	}
	if code, ok := parseFlags(fs, args, 0); !ok {
		return code
	}

	data, err := ipc.NewClient().ListBackdrops()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(os.Stdout, data.Backdrops)
	}
	writeBackdrops(os.Stdout, data.Backdrops)
	return 0
}

func writeBackdrops(w io.Writer, backdrops []ipc.BackdropInfo) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MONITOR\tWORKSPACE\tSIZE\tIMAGE\tFLAGS")
	for _, b := range backdrops {
		image := b.Filename
		if image == "" {
			image = "-"
		}
		flags := ""
		if b.Cached {
			flags += "cached "
		}
		if b.Spanning {
			flags += "spanning "
		}
		if b.CycleEnabled {
			flags += "cycle "
		}
		fmt.Fprintf(tw, "%s\t%d\t%dx%d\t%s\t%s\n", b.Monitor, b.Workspace, b.Width, b.Height, image, flags)
	}
	tw.Flush()
}

func runTarget(name string, args []string) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	monitor := fs.String("monitor", "", "Monitor identifier (default: all monitors)")
	workspace := fs.Int("workspace", -1, "Workspace number (default: current workspace)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: backdrop %s [--monitor ID] [--workspace N]\n", name)
		fs.PrintDefaults()
	}
	if code, ok := parseFlags(fs, args, 0); !ok {
		return code
	}

	target := ipc.TargetPayload{Monitor: *monitor}
	if *workspace >= 0 {
		target.Workspace = workspace
	}

	client := ipc.NewClient()
	var err error
	if name == "next" {
		err = client.Cycle(target)
	} else {
		err = client.Invalidate(target)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func printJSON(w io.Writer, v any) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

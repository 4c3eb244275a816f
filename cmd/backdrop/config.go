package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/backdrop/internal/config"
	"github.com/1broseidon/backdrop/internal/propkey"
)

func printConfigUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  backdrop config validate [--path PATH]")
	fmt.Fprintln(os.Stderr, "  backdrop config print [--path PATH] [--defaults]")
	fmt.Fprintln(os.Stderr, "  backdrop config get [--path PATH] <property>")
	fmt.Fprintln(os.Stderr, "  backdrop config set [--path PATH] <property> <value>")
	fmt.Fprintln(os.Stderr, "  backdrop config reset [--path PATH] <property>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Properties are full paths such as")
	fmt.Fprintln(os.Stderr, "  /backdrop/screen0/monitorDP-1/workspace0/last-image")
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printConfigUsage()
		return 2
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/backdrop/config.yaml)")

	switch args[0] {
	case "validate":
		if code, ok := parseFlags(fs, args[1:], 0); !ok {
			return code
		}
		if _, err := openStore(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if code, ok := parseFlags(fs, args[1:], 0); !ok {
			return code
		}
		cfg := config.DefaultConfig()
		if !*printDefaults {
			store, err := openStore(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			cfg = store.Config()
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "get":
		if code, ok := parseFlags(fs, args[1:], 1); !ok {
			return code
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "get requires <property>")
			return 2
		}
		store, err := openStore(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		value, err := store.Get(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			if errors.Is(err, config.ErrNotFound) {
				return 3
			}
			return 1
		}
		fmt.Println(formatValue(value))
		return 0

	case "set":
		if code, ok := parseFlags(fs, args[1:], 2); !ok {
			return code
		}
		if fs.NArg() != 2 {
			fmt.Fprintln(os.Stderr, "set requires <property> <value>")
			return 2
		}
		if err := checkProperty(fs.Arg(0)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		store, err := openStore(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if err := store.Set(fs.Arg(0), config.ParseValue(fs.Arg(1))); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0

	case "reset":
		if code, ok := parseFlags(fs, args[1:], 1); !ok {
			return code
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "reset requires <property>")
			return 2
		}
		store, err := openStore(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if err := store.Reset(fs.Arg(0)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config command: %s\n\n", args[0])
		printConfigUsage()
		return 2
	}
}

// checkProperty rejects backdrop properties whose key cannot be parsed, so
// typos do not silently create settings nothing reads.
func checkProperty(property string) error {
	if propkey.IsGlobal(property) {
		return nil
	}
	if _, err := propkey.ParseProperty(property); err != nil {
		return err
	}
	return nil
}

func formatValue(value any) string {
	list, ok := value.([]any)
	if !ok {
		return fmt.Sprint(value)
	}
	out := ""
	for i, item := range list {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprint(item)
	}
	return out
}

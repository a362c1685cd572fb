package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"localhub/internal/infra/config"
	"localhub/internal/infra/logger"
	"localhub/internal/infra/tracer"
)

const defaultConfigPath = "./localhub.yaml"

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") || os.Args[1] == "serve" {
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "doctor":
		if err := runDoctor(); err != nil {
			fmt.Fprintf(os.Stderr, "doctor: %v\n", err)
			os.Exit(1)
		}
	case "collect-events":
		if err := runCollect(); err != nil {
			fmt.Fprintf(os.Stderr, "collect-events: %v\n", err)
			os.Exit(1)
		}
	case "encrypt-secret":
		if err := runEncryptSecret(os.Stdin, os.Stdout, os.Getenv("LOCALHUB_CONFIG_KEY")); err != nil {
			fmt.Fprintf(os.Stderr, "encrypt-secret: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'localhub --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`localhub - multi-city local information API

USAGE:
    localhub [COMMAND] [FLAGS]

COMMANDS:
    serve            Run the HTTP API (default)
    doctor           Check configuration, keys and upstream connectivity
    collect-events   Fetch upcoming Ticketmaster events into the event file once
    encrypt-secret   Read a secret on stdin and print its "enc:" config form

FLAGS:
    -h, --help         Show this help message
    --config PATH      Config file path (default: ./localhub.yaml)

CONFIGURATION:
    Config file is optional; defaults apply when it is missing.
    Provider keys: BUSINESS_PROVIDER, GOOGLE_MAPS_API_KEY, YELP_API_KEY,
    GEOAPIFY_API_KEY, TICKETMASTER_KEY. Other settings: LOCALHUB_* variables.
    Values prefixed "enc:" are decrypted with LOCALHUB_CONFIG_KEY.

EXAMPLES:
    localhub                                  # Serve with ./localhub.yaml
    localhub --config /etc/localhub.yaml      # Serve with a custom config
    localhub doctor                           # Check system health
    localhub collect-events                   # Refresh the event file
    echo -n "$KEY" | localhub encrypt-secret  # Encrypt a key for the config file`)
}

// configPath returns the --config value from args, or the default.
func configPath(args []string) string {
	for i, a := range args {
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
	}
	return defaultConfigPath
}

func runServe() error {
	cfg, err := config.Load(configPath(os.Args[1:]))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := a.scheduler()
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if sched != nil {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		defer sched.Stop()
	}

	log.Info("localhub starting",
		"addr", cfg.Server.Addr,
		"provider", a.provider.Name(),
		"cities", len(a.cities.All()),
		"events_file", cfg.Events.File,
		"ticketmaster", a.ticketmaster.Configured(),
	)
	if err := a.server.Run(ctx); err != nil {
		return err
	}
	log.Info("localhub stopped")
	return nil
}

func runCollect() error {
	cfg, err := config.Load(configPath(os.Args[2:]))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()
	if !a.ticketmaster.Configured() {
		return fmt.Errorf("TICKETMASTER_KEY is not set")
	}

	report, err := a.collector.Run(ctx)
	if report != nil {
		fmt.Printf("cities: %d  fetched: %d  added: %d  file: %s\n", report.Cities, report.Fetched, report.Added, a.eventStore.Path())
	}
	return err
}

// runEncryptSecret encrypts the first line of r with passphrase.
func runEncryptSecret(r io.Reader, w io.Writer, passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("LOCALHUB_CONFIG_KEY is not set")
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return fmt.Errorf("no secret on stdin")
	}
	enc, err := config.EncryptValue(secret, passphrase)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "enc:%s\n", enc)
	return err
}

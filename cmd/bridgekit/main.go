// Package main is the entrypoint for bridgekit.
package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/morezero/bridgekit/internal/config"
	"github.com/morezero/bridgekit/internal/demo"
	"github.com/morezero/bridgekit/internal/server"
	"github.com/morezero/bridgekit/pkg/commsutil"
	"github.com/morezero/bridgekit/pkg/journal"
)

const usage = `Usage: bridgekit [command]
       bridgekit serve              Start the host (NATS bridge, HTTP health and post endpoints).
       bridgekit remote             Serve the demo page as the remote context over NATS.
       bridgekit demo [text]        Run host and demo page in process and print what happened.
       bridgekit migrate up         Create the traffic journal schema.
       bridgekit migrate status     Show whether the journal schema exists.
       bridgekit ensure-db [name]   Create database if missing (default: database in DATABASE_URL).
       bridgekit clear              Truncate the traffic journal; schema is preserved.

Commands:
  serve           (default) Start the bridge host.
  remote          Run the Lua demo page (or DEMO_SCRIPT) against BRIDGE_EVAL_SUBJECT / BRIDGE_INBOUND_SUBJECT.
  demo [text]     Send text (default "BridgeKit") to the page, press both page buttons, print the result.
  migrate up      Create the bridge_traffic table and indexes.
  migrate status  Report journal schema status.
  ensure-db       Create the journal database on the DATABASE_URL host.
  clear           Remove all recorded traffic.

Environment: COMMS_URL, SERVICE_NAME, BRIDGE_EVAL_SUBJECT, BRIDGE_INBOUND_SUBJECT,
BRIDGE_TRAFFIC_SUBJECT, BRIDGE_ERROR_TOPIC, BRIDGE_EVENT_NAME, BRIDGE_EVAL_TIMEOUT,
BRIDGE_PUBLISH_TIMEOUT, BRIDGE_SCRIPT (lua|javascript), DATABASE_URL (enables the journal), HTTP_PORT,
HEALTH_CHECK_TIMEOUT, DEMO_SCRIPT, LOG_LEVEL.
`

const defaultDemoText = "BridgeKit"

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("bridgekit migrate: require subcommand (up, status)")
		}
		sub := args[1]
		switch sub {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("bridgekit migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(); err != nil {
				log.Fatalf("bridgekit migrate status: %v", err)
			}
		default:
			log.Fatalf("bridgekit migrate: unknown subcommand %q (use up, status)", sub)
		}
		return
	case "clear":
		if err := runClear(); err != nil {
			log.Fatalf("bridgekit clear: %v", err)
		}
		return
	case "ensure-db":
		dbName := ""
		if len(args) > 1 {
			dbName = args[1]
		}
		if err := runEnsureDB(dbName); err != nil {
			log.Fatalf("bridgekit ensure-db: %v", err)
		}
		return
	case "demo":
		text := defaultDemoText
		if len(args) > 1 && args[1] != "" {
			text = args[1]
		}
		if err := runDemo(text); err != nil {
			log.Fatalf("bridgekit demo: %v", err)
		}
		return
	case "remote":
		if err := runRemote(); err != nil {
			log.Fatalf("bridgekit remote: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
		break
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("bridgekit: %v", err)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	server.SetupLogging(cfg.LogLevel)
	return cfg, nil
}

func demoOptions(cfg *config.Config) demo.Options {
	return demo.Options{
		ScriptPath: cfg.DemoScript,
		EventName:  cfg.EventName,
		ErrorTopic: cfg.ErrorTopic,
		Timeout:    cfg.EvalTimeout,
	}
}

func runDemo(text string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	res, err := demo.RunLocal(context.Background(), text, demoOptions(cfg))
	if err != nil {
		return err
	}
	fmt.Printf("Page shows:    %s\n", res.Displayed)
	fmt.Printf("Native alert:  %t\n", res.Alerted)
	fmt.Printf("Page replied:  %s\n", res.Reply)
	return nil
}

func runRemote() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-remote")
	if err != nil {
		return fmt.Errorf("connect NATS: %w", err)
	}
	defer nc.Drain()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return demo.ServeRemote(ctx, nc, cfg.EvalSubject, cfg.InboundSubject, demoOptions(cfg))
}

func runMigrateUp() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := journal.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return journal.EnsureSchema(ctx, pool)
}

func runMigrateStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := journal.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	applied, err := journal.SchemaApplied(ctx, pool)
	if err != nil {
		return err
	}
	if applied {
		fmt.Println("bridge_traffic: applied")
	} else {
		fmt.Println("bridge_traffic: pending (run: bridgekit migrate up)")
	}
	return nil
}

func runClear() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := journal.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := journal.New(pool).Clear(ctx); err != nil {
		return fmt.Errorf("clear journal: %w", err)
	}
	return nil
}

func runEnsureDB(dbName string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	targetURL, err := withDatabase(cfg.DatabaseURL, dbName)
	if err != nil {
		return err
	}
	if err := journal.EnsureDatabase(context.Background(), targetURL); err != nil {
		return err
	}
	fmt.Println("Database is ready.")
	return nil
}

// withDatabase replaces the database path of databaseURL when dbName is set.
func withDatabase(databaseURL, dbName string) (string, error) {
	if dbName == "" {
		return databaseURL, nil
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	u.Path = "/" + dbName
	return u.String(), nil
}

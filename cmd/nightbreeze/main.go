package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/robfig/cron/v3"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/nightbreeze/internal/automation"
	"github.com/lox/nightbreeze/internal/config"
	"github.com/lox/nightbreeze/internal/decision"
	"github.com/lox/nightbreeze/internal/rpcserver"
	"github.com/lox/nightbreeze/internal/store"
	"github.com/lox/nightbreeze/internal/switchbot"
	"github.com/lox/nightbreeze/internal/weather"
)

type CLI struct {
	Config string `short:"c" help:"Path to config.yaml (searched in standard locations when unset)."`
	DB     string `default:"data/nightbreeze.db" help:"Path to the sqlite audit database."`

	SwitchbotToken   string `env:"SWITCHBOT_TOKEN" help:"SwitchBot API token."`
	SwitchbotSecret  string `env:"SWITCHBOT_SECRET" help:"SwitchBot API secret."`
	ACDeviceID       string `env:"SWITCHBOT_AC_DEVICE_ID" help:"Infrared remote device ID for the AC."`
	OpenRouterAPIKey string `env:"OPENROUTER_API_KEY" help:"OpenRouter API key for the reasoning engine."`
	OpenRouterModel  string `env:"OPENROUTER_MODEL" help:"Model override for the reasoning engine."`
	SupabaseURL      string `env:"SUPABASE_URL" help:"Optional Supabase project URL for remote audit mirroring."`
	SupabaseAnonKey  string `env:"SUPABASE_ANON_KEY" help:"Supabase anon key."`
	RPCAPIKey        string `env:"RPC_API_KEY" help:"API key required by the tool server (empty = open)."`

	Run     RunCmd     `cmd:"" help:"Run one automation decision cycle."`
	Serve   ServeCmd   `cmd:"" help:"Serve the assistant tool endpoints and optional scheduled runs."`
	Devices DevicesCmd `cmd:"" help:"List devices and infrared remotes on the account."`
	Status  StatusCmd  `cmd:"" help:"Show AC status, room conditions, and recent runs."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("nightbreeze"),
		kong.Description("AI-assisted night air-conditioner automation."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}

func (c *CLI) ac() (*switchbot.AC, error) {
	if c.SwitchbotToken == "" || c.SwitchbotSecret == "" {
		return nil, errors.New("SWITCHBOT_TOKEN and SWITCHBOT_SECRET are required")
	}
	if c.ACDeviceID == "" {
		return nil, errors.New("SWITCHBOT_AC_DEVICE_ID is required (use the devices command to find it)")
	}
	return switchbot.NewAC(switchbot.New(c.SwitchbotToken, c.SwitchbotSecret), c.ACDeviceID), nil
}

func (c *CLI) loadConfig() (*config.Config, error) {
	path, err := config.FindConfig(c.Config)
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

func (c *CLI) openStore() (*store.Store, func(), error) {
	if dir := filepath.Dir(c.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", c.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, func() { db.Close() }, nil
}

// buildRunner wires the full pipeline from CLI credentials and the policy
// config: hub sensor + actuator, weather, reasoning engine, audit sinks.
func (c *CLI) buildRunner(cfg *config.Config, st *store.Store) (*automation.Runner, error) {
	ac, err := c.ac()
	if err != nil {
		return nil, err
	}

	engine, err := decision.NewEngine(c.OpenRouterAPIKey, c.OpenRouterModel)
	if err != nil {
		return nil, err
	}

	wx := weather.NewClient(cfg.Location.Latitude, cfg.Location.Longitude)

	sink := &store.MultiSink{Primary: st}
	if c.SupabaseURL != "" && c.SupabaseAnonKey != "" {
		sink.Secondary = append(sink.Secondary, store.NewSupabase(c.SupabaseURL, c.SupabaseAnonKey))
	}

	return automation.NewRunner(cfg, ac, ac, wx, engine, ac, sink, st), nil
}

type RunCmd struct {
	DryRun bool `help:"Compute and log the decision without calling the actuator."`
	Force  bool `help:"Bypass the active-hours window and minimum-change interval."`
}

func (r *RunCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}

	st, closeDB, err := cli.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	runner, err := cli.buildRunner(cfg, st)
	if err != nil {
		return err
	}

	res, runErr := runner.Run(context.Background(), automation.Options{DryRun: r.DryRun, Force: r.Force})
	if res != nil {
		fmt.Println()
		fmt.Println(res.Summary())
	}
	return runErr
}

type ServeCmd struct {
	Addr     string `default:":8080" help:"Listen address for the tool server."`
	Schedule string `help:"Cron expression for automatic runs (e.g. '0 * * * *'; empty disables)."`
	DryRun   bool   `help:"Scheduled runs compute decisions without actuating."`
}

func (s *ServeCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}

	st, closeDB, err := cli.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	ac, err := cli.ac()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if s.Schedule != "" {
		runner, err := cli.buildRunner(cfg, st)
		if err != nil {
			return err
		}

		sched := cron.New()
		_, err = sched.AddFunc(s.Schedule, func() {
			res, err := runner.Run(ctx, automation.Options{DryRun: s.DryRun})
			if err != nil {
				log.Printf("scheduled run: %v", err)
			}
			if res != nil {
				fmt.Println(res.Summary())
			}
		})
		if err != nil {
			return fmt.Errorf("parse schedule: %w", err)
		}
		sched.Start()
		defer sched.Stop()
		log.Printf("scheduled runs enabled: %s", s.Schedule)
	}

	server := rpcserver.NewServer(ac, cli.RPCAPIKey, s.Addr)
	log.Printf("tool server listening on %s", s.Addr)
	return server.Run(ctx)
}

type DevicesCmd struct{}

func (d *DevicesCmd) Run(cli *CLI) error {
	if cli.SwitchbotToken == "" || cli.SwitchbotSecret == "" {
		return errors.New("SWITCHBOT_TOKEN and SWITCHBOT_SECRET are required")
	}
	client := switchbot.New(cli.SwitchbotToken, cli.SwitchbotSecret)

	list, err := client.Devices(context.Background())
	if err != nil {
		return err
	}

	fmt.Println("Devices:")
	for _, dev := range list.DeviceList {
		fmt.Printf("  %-24s %-16s %s\n", dev.DeviceName, dev.DeviceType, dev.DeviceID)
	}
	fmt.Println("\nInfrared remotes:")
	for _, dev := range list.InfraredRemoteList {
		fmt.Printf("  %-24s %-16s %s (hub %s)\n", dev.DeviceName, dev.RemoteType, dev.DeviceID, dev.HubDeviceID)
	}
	return nil
}

type StatusCmd struct {
	Limit int `default:"5" help:"Number of recent runs to show."`
}

func (s *StatusCmd) Run(cli *CLI) error {
	ctx := context.Background()

	ac, err := cli.ac()
	if err != nil {
		return err
	}

	if state, err := ac.Status(ctx); err != nil {
		if errors.Is(err, switchbot.ErrStatusUnavailable) {
			fmt.Println("AC: status not reported (infrared remote)")
		} else {
			fmt.Printf("AC: status unavailable: %v\n", err)
		}
	} else {
		fmt.Printf("AC: %s\n", state)
	}

	if room, err := ac.RoomConditions(ctx); err != nil {
		fmt.Printf("Room: unavailable: %v\n", err)
	} else {
		fmt.Printf("Room: %.1f°C, %.0f%% humidity\n", room.Temperature, room.Humidity)
	}

	st, closeDB, err := cli.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	records, err := st.Recent(ctx, s.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("\nNo automation runs recorded yet.")
		return nil
	}

	fmt.Println("\nRecent runs:")
	for _, r := range records {
		executed := "suppressed"
		if r.Executed {
			executed = "executed"
		}
		fmt.Printf("  %s  %-12s %-10s %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Action, executed, r.Reasoning)
	}
	return nil
}

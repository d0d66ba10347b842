// Package app wires configuration, the ledger clients, the monitor, the
// dialogue engine, and the Telegram runtime into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/solwatch/core/bootstrap"
	coreconfig "github.com/m3rciful/solwatch/core/config"
	"github.com/m3rciful/solwatch/core/logger"
	"github.com/m3rciful/solwatch/core/netutil"
	tg "github.com/m3rciful/solwatch/core/telegram"
	tgsender "github.com/m3rciful/solwatch/core/telegram/sender"
	"github.com/m3rciful/solwatch/internal/bot"
	"github.com/m3rciful/solwatch/internal/dialogue"
	"github.com/m3rciful/solwatch/internal/journal"
	"github.com/m3rciful/solwatch/internal/ledger"
	"github.com/m3rciful/solwatch/internal/ledger/solanarpc"
	"github.com/m3rciful/solwatch/internal/metrics"
	"github.com/m3rciful/solwatch/internal/monitor"
	"github.com/m3rciful/solwatch/internal/session"
	"github.com/m3rciful/solwatch/internal/transfer"
	"github.com/m3rciful/solwatch/migrations"
)

const (
	component = "app"

	welcomeText     = "Welcome to the SolBot Server! Use the Telegram bot to interact with Solana blockchain."
	shutdownTimeout = 5 * time.Second
	rpcTimeout      = 30 * time.Second
)

// Overrides replace collaborators New would otherwise build.
type Overrides struct {
	Bot        *tele.Bot
	Directory  ledger.StaticDirectory
	LoggerInit func(*coreconfig.Config) error
}

// App owns every long-lived component of the process.
type App struct {
	cfg *Config

	infra      *bootstrap.Result
	metrics    *metrics.Metrics
	dir        ledger.StaticDirectory
	monitor    *monitor.Monitor
	store      *session.Store
	journal    *journal.Store
	registry   *tg.Registry
	dispatcher *tgsender.Dispatcher
	tgBot      *tele.Bot
	engine     *dialogue.Engine
	handlers   *bot.Bot
	server     *http.Server

	closeOnce sync.Once
	closeErr  error
}

// New builds the application. Building the bot resolves its identity with
// Telegram; ledger connections open per subscription.
func New(ctx context.Context, cfg *Config, ov Overrides) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config provided")
	}

	infra, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: migrations.FS,
		LoggerInit: ov.LoggerInit,
	})
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, infra: infra, metrics: metrics.New(), store: session.NewStore()}
	if err := a.build(ov); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ov Overrides) error {
	cfg := a.cfg
	networks := cfg.EnabledNetworks()

	a.dir = ov.Directory
	if a.dir == nil {
		client := netutil.NewHTTPClient(netutil.Options{Timeout: rpcTimeout})
		dir, err := solanarpc.NewDirectory(networks, cfg.Endpoints(), cfg.Networks.Commitment, cfg.Transfer.PollInterval, client)
		if err != nil {
			return fmt.Errorf("app: ledger clients: %w", err)
		}
		a.dir = dir
	}

	a.tgBot = ov.Bot
	if a.tgBot == nil {
		b, err := tg.NewBot(&cfg.Config, false)
		if err != nil {
			return err
		}
		a.tgBot = b
	}

	a.dispatcher = tgsender.NewDispatcher(tgsender.Options{
		Workers:   cfg.Sender.Workers,
		QueueSize: cfg.Sender.QueueSize,
		Observe:   a.metrics.Send,
	})

	sinks := monitor.Sinks{bot.NewNotifier(a.tgBot, a.dispatcher)}
	if a.infra.DB != nil {
		a.journal = journal.New(a.infra.DB)
		sinks = append(sinks, a.journal)
	}

	a.monitor = monitor.New(a.dir, sinks, monitor.Config{
		Networks:       networks,
		ExplorerBase:   cfg.Networks.ExplorerBase,
		DetailAttempts: cfg.Monitor.DetailAttempts,
		DetailBackoff:  cfg.Monitor.DetailBackoff,
		QueueSize:      cfg.Monitor.QueueSize,
		ReconnectMin:   cfg.Monitor.ReconnectMin,
		ReconnectMax:   cfg.Monitor.ReconnectMax,
	}, a.metrics)

	deps := dialogue.Deps{
		Store:        a.store,
		Watcher:      a.monitor,
		Submitter:    transfer.NewSubmitter(a.dir, transfer.Config{Timeout: cfg.Transfer.Timeout, ExplorerBase: cfg.Networks.ExplorerBase}, a.metrics),
		Replier:      bot.NewReplier(a.tgBot),
		Metrics:      a.metrics,
		ExplorerBase: cfg.Networks.ExplorerBase,
	}
	botDeps := bot.Deps{
		Watches:      a.monitor,
		AdminID:      cfg.Telegram.AdminID,
		ExplorerBase: cfg.Networks.ExplorerBase,
	}
	if a.journal != nil {
		deps.Recorder = a.journal
		botDeps.History = a.journal
	}
	a.engine = dialogue.New(deps)
	botDeps.Dialogue = a.engine

	a.registry = tg.NewRegistry()
	a.handlers = bot.New(botDeps)
	if err := a.handlers.Register(a.registry); err != nil {
		return err
	}

	if cfg.Metrics.Listen != "" {
		a.server = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           a.statusHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	logger.Info(context.Background(), component, "app.build",
		slog.String("status", "ok"),
		slog.Any("networks", networks),
		slog.Bool("journal", a.journal != nil),
		slog.Bool("status_server", a.server != nil),
	)
	return nil
}

func (a *App) statusHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(welcomeText))
	})
	return mux
}

// Run serves Telegram updates and the status server until ctx is done or
// either fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return tg.RunTelegram(gctx, a.TelegramRunOptions())
	})

	if a.server != nil {
		g.Go(func() error {
			logger.Info(gctx, component, "http.listen",
				slog.String("status", "ok"),
				slog.String("addr", a.server.Addr),
			)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer scancel()
			return a.server.Shutdown(sctx)
		})
	}
	return g.Wait()
}

// TelegramRunOptions returns the runtime options Run hands to the Telegram
// loop. The monitor stops before the dispatcher drains.
func (a *App) TelegramRunOptions() tg.RunOptions {
	return tg.RunOptions{
		Config:      &a.cfg.Config,
		Bot:         a.tgBot,
		Registry:    a.registry,
		Dispatcher:  a.dispatcher,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, a.metrics, bot.RateLimited),
		Routes:      a.handlers.Routes(a.registry),
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			logger.Info(ctx, component, "app.start",
				slog.String("status", "ok"),
				slog.String("bot", botName(rt.Bot)),
				slog.Int("commands", len(rt.Registry.Commands())),
			)
			return nil
		},
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			err := a.monitor.Close()
			a.store.WipeAll()
			logger.Info(ctx, component, "app.stop",
				slog.String("status", "ok"),
				slog.Int("sessions", a.store.Len()),
				slog.Int("pending_sends", a.dispatcher.Pending()),
			)
			return err
		},
	}
}

func botName(b *tele.Bot) string {
	if b == nil || b.Me == nil {
		return ""
	}
	return b.Me.Username
}

// Close releases every component. It is safe to call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if a.monitor != nil {
			errs = append(errs, a.monitor.Close())
		}
		if a.dispatcher != nil {
			a.dispatcher.Close()
		}
		// Key material lives only in sessions.
		a.store.WipeAll()
		if a.dir != nil {
			errs = append(errs, a.dir.Close())
		}
		errs = append(errs, a.infra.Close())
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

// Package app wires the radio client together with fx.
package app

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/matheus3301/radio/internal/bus"
	"github.com/matheus3301/radio/internal/console"
	"github.com/matheus3301/radio/internal/gateway"
	"github.com/matheus3301/radio/internal/history"
	"github.com/matheus3301/radio/internal/journal"
	"github.com/matheus3301/radio/internal/lock"
	"github.com/matheus3301/radio/internal/logging"
	"github.com/matheus3301/radio/internal/poll"
	"github.com/matheus3301/radio/internal/profile"
	"github.com/matheus3301/radio/internal/settings"
	"github.com/matheus3301/radio/internal/speech"
	"github.com/matheus3301/radio/internal/store"
	"github.com/matheus3301/radio/internal/terminal"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Params holds the resolved client configuration passed to the fx module.
type Params struct {
	Username       string
	ServerURL      string
	RequestTimeout time.Duration
	SettingsPath   string // empty = settings.json in the working directory

	// Overrides for testing; nil = process stdio and the OS synthesizer.
	In      io.Reader
	Out     io.Writer
	Speaker speech.Speaker
}

// Module returns the fx module for the client, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Options(
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.Module("radio",
			fx.Supply(p),
			fx.Provide(
				provideLogger,
				provideLock,
				provideBus,
				provideSettings,
				provideStore,
				journal.NewRecorder,
				provideSpeaker,
				provideHistory,
				provideConsole,
				provideAPI,
				provideGateway,
				providePoller,
				provideSession,
			),
			fx.Invoke(registerLifecycle),
		),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Username), p.Username)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Username); err != nil {
		return nil, err
	}
	l, err := lock.Acquire(profile.Dir(p.Username), p.Username)
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired", zap.String("dir", profile.Dir(p.Username)))
	return l, nil
}

func provideBus(logger *zap.Logger) *bus.Bus {
	return bus.New(bus.WithLogger(logger.Named("bus")))
}

func provideSettings(p Params, logger *zap.Logger) *settings.Store {
	path := p.SettingsPath
	if path == "" {
		path = settings.DefaultPath
	}
	return settings.Load(path, logger)
}

// provideStore depends on the lock so the journal is only opened by the
// process that owns the profile.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.JournalPath(p.Username)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("journal initialized", zap.String("path", dbPath))
	return db, nil
}

func provideSpeaker(p Params, logger *zap.Logger) speech.Speaker {
	if p.Speaker != nil {
		return p.Speaker
	}
	return speech.NewSystem(logger)
}

func provideHistory(s *settings.Store, b *bus.Bus, logger *zap.Logger) *history.Log {
	return history.New(s, b, logger)
}

func provideConsole(p Params) *terminal.Writer {
	if p.Out != nil {
		return terminal.NewWriter(p.Out)
	}
	return terminal.NewWriter(os.Stdout)
}

func provideAPI(p Params) *gateway.API {
	return gateway.NewAPI(p.ServerURL, p.RequestTimeout)
}

func provideGateway(api *gateway.API, h *history.Log, sp speech.Speaker, s *settings.Store, out *terminal.Writer, logger *zap.Logger) *gateway.Gateway {
	return gateway.New(api, h, sp, s, out, logger)
}

func providePoller(gw *gateway.Gateway, s *settings.Store, b *bus.Bus, logger *zap.Logger) *poll.Controller {
	return poll.New(gw, func() time.Duration { return s.Get().Interval() }, b, logger)
}

func provideSession(p Params, gw *gateway.Gateway, pc *poll.Controller, s *settings.Store, out *terminal.Writer, logger *zap.Logger) *console.Session {
	in := p.In
	if in == nil {
		in = os.Stdin
	}
	return console.NewSession(p.Username, gw, pc, s, in, out, logger)
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Session    *console.Session
	API        *gateway.API
	Bus        *bus.Bus
	Poller     *poll.Controller
	Recorder   *journal.Recorder
	Store      *store.DB
	Lock       *lock.Lock
	Logger     *zap.Logger
}

func registerLifecycle(lp lifecycleParams) {
	var (
		cancel        context.CancelFunc
		done          chan struct{}
		stopStatusLog func()
	)
	logger := lp.Logger

	lp.Lifecycle.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			lp.Recorder.Start(context.Background())
			stopStatusLog = poll.LogStatusChanges(lp.Bus, logger.Named("poll"))

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			done = make(chan struct{})
			go func() {
				defer close(done)
				err := lp.Session.Run(ctx)
				if errors.Is(err, context.Canceled) {
					return
				}
				code := 0
				if err != nil {
					logger.Warn("session ended", zap.Error(err))
					code = 1
				}
				if serr := lp.Shutdowner.Shutdown(fx.ExitCode(code)); serr != nil {
					logger.Error("shutdown failed", zap.Error(serr))
				}
			}()

			logger.Info("client started",
				zap.String("username", lp.Session.Username()),
				zap.String("server", lp.API.BaseURL()),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
				logger.Warn("session did not exit before shutdown deadline")
			}
			// The session stops polling on exit; this covers a deadline miss.
			lp.Poller.Stop()
			stopStatusLog()
			lp.Recorder.Stop()
			if err := lp.Store.Close(); err != nil {
				logger.Warn("error closing journal", zap.Error(err))
			}
			if err := lp.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			_ = logger.Sync()
			return nil
		},
	})
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gin-gonic/gin"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/config"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/display"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/engine"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/notify"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/store"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/supervisor"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/web"
)

// storeEnv is what store-backed commands operate on.
type storeEnv struct {
	cfg   *config.Config
	log   *log.Logger
	store store.Store
}

// pingTimeout bounds the startup connectivity check.
const pingTimeout = 2 * time.Second

// openStore is replaced in tests.
var openStore = func(cfg *config.Config) (store.Store, error) {
	return store.NewRedis(store.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}), nil
}

// withStore loads configuration, opens the store and runs fn with a context
// cancelled on SIGINT or SIGTERM.
func withStore(parent context.Context, flags *globalFlags, fn func(context.Context, *storeEnv) error) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(flags, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := signalContext(parent)
	defer cancel()
	checkStore(ctx, logger, st, cfg.Redis.Addr)
	return fn(ctx, &storeEnv{cfg: cfg, log: logger, store: st})
}

// pinger is implemented by stores that can check connectivity.
type pinger interface {
	Ping(ctx context.Context) error
}

// checkStore warns early when the store cannot be reached. Commands still
// run: the engine waits for the store and the CLI reports its own errors.
func checkStore(ctx context.Context, logger *log.Logger, st store.Store, addr string) {
	p, ok := st.(pinger)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		logger.Warn("store unreachable", "addr", addr, "err", err)
	}
}

// executeRun drives the configured (or overridden) display.
func executeRun(flags *globalFlags, driverOverride string) error {
	return withStore(context.Background(), flags, func(ctx context.Context, env *storeEnv) error {
		kind := display.Kind(env.cfg.Display.Driver)
		if driverOverride != "" {
			kind = display.Kind(driverOverride)
		}
		driver, err := display.Open(kind, display.Options{
			Logger:   env.log.WithPrefix("display"),
			ClkPin:   env.cfg.Display.ClkPin,
			DioPin:   env.cfg.Display.DioPin,
			BitDelay: time.Duration(env.cfg.Display.BitDelayUS) * time.Microsecond,
		})
		if err != nil {
			return err
		}
		dir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		return superviseEngine(ctx, env, driver, dir)
	})
}

// executeWeb runs the engine on a broadcast driver next to the web server.
// The process ends when either side ends.
func executeWeb(flags *globalFlags, host string, port int) error {
	return withStore(context.Background(), flags, func(ctx context.Context, env *storeEnv) error {
		if host != "" {
			env.cfg.Web.Host = host
		}
		if port != 0 {
			env.cfg.Web.Port = port
		}
		if !flags.debug {
			gin.SetMode(gin.ReleaseMode)
		}

		broadcast := display.NewBroadcast(env.log.WithPrefix("broadcast"))
		srv, err := web.New(web.Options{
			Broadcast:         broadcast,
			Log:               env.log.WithPrefix("web"),
			StaticDir:         env.cfg.Web.StaticDir,
			MaxConnectsPerSec: env.cfg.Web.MaxConnectsPerSec,
		})
		if err != nil {
			return err
		}
		dir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		webErr := make(chan error, 1)
		go func() {
			err := srv.ListenAndServe(ctx, env.cfg.Web.Addr())
			cancel()
			webErr <- err
		}()

		engineErr := superviseEngine(ctx, env, broadcast, dir)
		cancel()
		return errors.Join(engineErr, <-webErr)
	})
}

// superviseEngine runs the engine under the supervisor, logging every event
// and forwarding them to the notifier. A signal-driven shutdown returns nil.
func superviseEngine(ctx context.Context, env *storeEnv, driver display.Driver, dir string) error {
	events := make(chan engine.Event, 128)
	sup := supervisor.New(env.cfg.Supervisor, dir, events)

	var notifier *notify.Notifier
	if n := env.cfg.Notifications; n.URL != "" {
		notifier = notify.New(n.URL, notify.DefaultTitle, n.OnError, n.OnStop)
	}

	eng, err := engine.New(engine.Options{
		Store:  env.store,
		DB:     env.cfg.Redis.DB,
		Driver: driver,
		Log:    env.log,
		Events: events,
		Hook: func(ev engine.Event) {
			sup.UpdateState(ev)
			if notifier != nil {
				notifier.Hook(ev)
			}
		},
		Heartbeat: sup.NotifyOutput,
	})
	if err != nil {
		return err
	}

	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		for ev := range events {
			logEvent(env.log, ev)
		}
	}()

	sdNotify(env.log, daemon.SdNotifyReady)
	err = sup.Supervise(ctx, eng.Run)
	sdNotify(env.log, daemon.SdNotifyStopping)

	close(events)
	<-drainDone

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// logEvent writes an engine event to the process log at a level matching its
// kind.
func logEvent(logger *log.Logger, ev engine.Event) {
	switch ev.Kind {
	case engine.EventError:
		logger.Error(ev.Message)
	case engine.EventWidgetError:
		logger.Warn(ev.Message, "widget", ev.Widget, "index", ev.Index)
	case engine.EventConfig:
		logger.Info(ev.Message, "hash", ev.Hash)
	case engine.EventWidget:
		logger.Debug(ev.Message, "widget", ev.Widget, "index", ev.Index)
	case engine.EventBrightness:
		logger.Debug(ev.Message, "level", ev.Brightness)
	case engine.EventSupervisor:
		logger.Info(ev.Message, "source", "supervisor")
	default:
		logger.Info(ev.Message, "kind", ev.Kind)
	}
}

// sdNotify reports lifecycle state to systemd. Outside systemd it is a no-op.
func sdNotify(logger *log.Logger, state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		logger.Debug("sd_notify failed", "state", state, "err", err)
	}
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

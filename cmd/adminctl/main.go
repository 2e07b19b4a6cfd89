package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"hostpanel/internal/cache"
	"hostpanel/internal/client"
	"hostpanel/internal/clientstore"
	"hostpanel/internal/config"
	"hostpanel/internal/gate"
	"hostpanel/internal/jobs"
	"hostpanel/internal/log"
	"hostpanel/internal/models"
	"hostpanel/internal/session"
)

const usage = `usage: adminctl <command> [flags]

commands:
  login     -username <name|email> -password <secret>
  logout
  whoami
  watch     follow the session and keep it fresh until interrupted
  register  -username <name> -email <email> -password <secret> [-role admin|superadmin]`

type app struct {
	cfg        *config.ClientConfig
	log        zerolog.Logger
	api        *client.Client
	controller *session.Controller
	out        io.Writer
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := log.NewWithWriter(cfg.Environment, os.Stderr)

	if err := run(cfg, logger, os.Args[1], os.Args[2:]); err != nil {
		logger.Error().Err(err).Str("command", os.Args[1]).Msg("adminctl failed")
		os.Exit(1)
	}
}

func run(cfg *config.ClientConfig, logger zerolog.Logger, command string, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Store.Redis)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer redisClient.Close()

	store := clientstore.NewRedisStore(redisClient, cfg.Store.Prefix, cfg.Store.Channel, logger)
	api := client.New(cfg.API.BaseURL, cfg.API.Timeout)
	nav := session.NavigatorFunc(func(path string) {
		logger.Debug().Str("path", path).Msg("navigate")
	})
	routes := session.Routes{Login: cfg.Routes.Login, Protected: cfg.Routes.Protected}

	a := &app{
		cfg:        cfg,
		log:        logger,
		api:        api,
		controller: session.NewController(api, store, nav, routes, logger),
		out:        os.Stdout,
	}

	switch command {
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.controller.Logout(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "watch":
		return a.watch(ctx)
	case "register":
		return a.register(ctx, args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("username", "", "username or email")
	password := fs.String("password", os.Getenv("HOSTPANEL_CLIENT_PASSWORD"), "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.controller.Login(ctx, *username, *password); err != nil {
		return err
	}
	a.render()
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	if err := a.controller.Bootstrap(ctx); err != nil {
		return err
	}
	if a.render() != gate.Render {
		return errors.New("not logged in")
	}
	return nil
}

func (a *app) watch(ctx context.Context) error {
	if err := a.controller.Bootstrap(ctx); err != nil {
		return err
	}
	a.render()

	unsubscribe := a.controller.Subscribe(func(session.State) { a.render() })
	defer unsubscribe()

	if err := a.controller.Watch(ctx); err != nil {
		return err
	}

	scheduler := jobs.NewScheduler(a.controller, a.cfg.Routes.RefreshInterval, a.log)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	<-ctx.Done()
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	username := fs.String("username", "", "username of the new admin")
	email := fs.String("email", "", "email of the new admin")
	password := fs.String("password", "", "initial password")
	role := fs.String("role", string(models.AdminRoleAdmin), "admin or superadmin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.controller.Bootstrap(ctx); err != nil {
		return err
	}
	state := a.controller.State()
	if !state.Authenticated() {
		a.render()
		return errors.New("not logged in")
	}

	created, err := a.api.Register(ctx, state.Token, client.RegisterRequest{
		Username: *username,
		Email:    *email,
		Password: *password,
		Role:     models.AdminRole(*role),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created %s <%s> as %s (id %s)\n", created.Username, created.Email, created.Role, created.ID)
	return nil
}

func (a *app) render() gate.Outcome {
	return gate.New(a.controller, a.cfg.Routes.Login).Render(terminalView{out: a.out})
}

type terminalView struct {
	out io.Writer
}

func (v terminalView) Loading() {
	fmt.Fprintln(v.out, "checking session...")
}

func (v terminalView) Redirect(path string) {
	fmt.Fprintf(v.out, "not logged in (login view: %s); run adminctl login\n", path)
}

func (v terminalView) Protected(profile models.Profile) {
	fmt.Fprintf(v.out, "%s <%s> role=%s id=%s\n", profile.Username, profile.Email, profile.Role, profile.ID)
}

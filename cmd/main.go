package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"thumbforge-client/internal/config"
	"thumbforge-client/internal/handler"
	"thumbforge-client/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const usage = `usage: thumbforge [-config path] <command> [flags]

commands:
  serve                 run the local dashboard
  signin -u NAME -p PW  sign in and store the session in the profile
  signout               clear the stored session
  status                show session, usage and theme
  generate [flags]      request a thumbnail (see generate -h)
  theme [light|dark|toggle]
  history [-limit n]    list recent generations
  whoami                show the claims carried by the session token
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "thumbforge: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("thumbforge", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "./configs/config.yaml", "path to the config file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "serve":
		return serve(a)
	case "signin":
		return a.signIn(ctx, rest, stdout)
	case "signout":
		return a.signOut(stdout)
	case "status":
		return a.status(stdout)
	case "generate":
		return a.generate(ctx, rest, stdout)
	case "theme":
		return a.theme(rest, stdout)
	case "history":
		return a.listHistory(ctx, rest, stdout)
	case "whoami":
		return a.whoami(stdout)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func serve(a *app) error {
	dashboard := handler.NewDashboardHandler(handler.DashboardDeps{
		Gate:         a.gate,
		Tracker:      a.tracker,
		Previews:     a.previews,
		Orchestrator: a.orch,
		Theme:        a.prefs,
		History:      a.history,
		DownloadDir:  a.downloadDir(),
	})
	router := setupRouter(a.cfg, dashboard)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Dashboard.Port),
		Handler:      router,
		ReadTimeout:  a.cfg.Dashboard.ReadTimeout,
		WriteTimeout: a.cfg.Dashboard.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("dashboard listening on port %d", a.cfg.Dashboard.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("dashboard failed: %w", err)
	case <-quit:
	}

	logger.Infof("dashboard shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("dashboard shutdown failed: %v", err)
		return server.Close()
	}
	logger.Infof("dashboard stopped")
	return nil
}

func setupRouter(cfg *config.Config, dashboard *handler.DashboardHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	dashboard.Register(router.Group("/api"))
	return router
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"thumbforge-client/internal/auth"
	"thumbforge-client/internal/client"
	"thumbforge-client/internal/config"
	"thumbforge-client/internal/history"
	"thumbforge-client/internal/model"
	"thumbforge-client/internal/preview"
	"thumbforge-client/internal/quota"
	"thumbforge-client/internal/service"
	"thumbforge-client/internal/storage"
	"thumbforge-client/internal/theme"
	"thumbforge-client/internal/utils"
	"thumbforge-client/pkg/logger"
)

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	store    storage.Storage
	gate     *auth.Gate
	tracker  *quota.Tracker
	previews *preview.Manager
	prefs    *theme.Preferences
	history  *history.Recorder
	orch     *service.Orchestrator
}

func newApp(cfg *config.Config) (*app, error) {
	httpClient := utils.NewHTTPClient(cfg.Service.Timeout, cfg.Log.Level == "debug")

	generator, err := client.NewGenerator(cfg, httpClient)
	if err != nil {
		return nil, err
	}

	var store storage.Storage
	if cfg.Session.Type == "memory" {
		store = storage.NewMemoryStorage()
	} else {
		store = storage.NewDiskStorage(cfg.Session.DataDir)
	}

	a := &app{
		cfg:      cfg,
		store:    store,
		gate:     auth.NewGate(store, client.NewAuthClient(cfg.Service.BaseURL, httpClient)),
		tracker:  quota.NewTracker(store),
		previews: preview.NewManager(cfg.Preview.Dir),
		prefs:    theme.New(store, model.Theme(cfg.UI.DefaultTheme)),
	}

	if cfg.History.Enabled {
		rec, err := history.Open(cfg.History.Path)
		if err != nil {
			logger.Warnf("generation history disabled: %v", err)
		} else {
			a.history = rec
		}
	}

	opts := service.Options{
		Auth:       a.gate,
		Quota:      a.tracker,
		Images:     a.previews,
		Generator:  generator,
		Downloader: client.NewDownloader(httpClient),
	}
	if a.history != nil {
		opts.Recorder = a.history
	}
	a.orch = service.NewOrchestrator(opts)
	return a, nil
}

func (a *app) Close() {
	a.previews.Close()
	a.prefs.Close()
	a.tracker.Close()
	a.gate.Close()
	if a.history != nil {
		a.history.Close()
	}
	if err := a.store.Close(); err != nil {
		logger.Warnf("closing profile: %v", err)
	}
}

func (a *app) downloadDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, "Downloads")
	}
	return "."
}

func (a *app) signIn(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("signin", flag.ContinueOnError)
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *username == "" || *password == "" {
		return fmt.Errorf("%w: signin needs -u and -p", errUsage)
	}

	session, err := a.gate.SignIn(ctx, *username, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "signed in as %s\n", session.Username)
	return nil
}

func (a *app) signOut(stdout io.Writer) error {
	if err := a.gate.SignOut(); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "signed out")
	return nil
}

func (a *app) status(stdout io.Writer) error {
	if session, ok := a.gate.Session(); ok {
		fmt.Fprintf(stdout, "session:   %s\n", session.Username)
	} else if a.gate.IsAuthenticated() {
		fmt.Fprintln(stdout, "session:   signed in")
	} else {
		fmt.Fprintln(stdout, "session:   signed out")
	}

	u := a.tracker.Usage()
	fmt.Fprintf(stdout, "usage:     %d/%d (%d left)\n", u.Count, u.Ceiling, u.Remaining)
	fmt.Fprintf(stdout, "theme:     %s\n", a.prefs.Current())
	fmt.Fprintf(stdout, "provider:  %s\n", a.cfg.Service.Provider)
	return nil
}

func (a *app) generate(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	image := fs.String("image", "", "path of the source image")
	category := fs.String("category", "", "Gaming, Vlog, Fashion, Tech, Cooking or Other")
	custom := fs.String("custom", "", "custom category when -category is Other")
	platform := fs.String("platform", "", "youtube, insta-reel, insta-post or x")
	focus := fs.String("focus", "", "focus object")
	style := fs.String("style", "", "optional style hint")
	addons := fs.String("addons", "", "optional extra instructions")
	download := fs.String("download", "", "save the thumbnail into this directory")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *image != "" {
		if _, err := a.previews.SelectFile(*image); err != nil {
			return err
		}
	}

	form := model.FormState{
		Category:       *category,
		CustomCategory: *custom,
		Platform:       *platform,
		Focus:          *focus,
		Style:          *style,
		Addons:         *addons,
	}
	if r := a.orch.Readiness(form); !r.Enabled {
		if len(r.Validation.Missing) > 0 {
			return fmt.Errorf("%s: missing %v", r.Reason, r.Validation.MissingNames())
		}
		return errors.New(r.Reason)
	}

	result, err := a.orch.Submit(ctx, form)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, result.ArtifactURI)
	fmt.Fprintf(stdout, "%d generations left\n", a.tracker.Remaining())

	if *download != "" {
		path, err := a.orch.DownloadResult(ctx, *download)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "saved %s\n", path)
	}
	return nil
}

func (a *app) theme(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(stdout, a.prefs.Current())
		return nil
	}

	var (
		t   model.Theme
		err error
	)
	if args[0] == "toggle" {
		t, err = a.prefs.Toggle()
	} else {
		t, err = model.ParseTheme(args[0])
		if err == nil {
			err = a.prefs.Set(t)
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, t)
	return nil
}

func (a *app) listHistory(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "number of entries")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if a.history == nil {
		return errors.New("generation history is disabled")
	}

	generations, err := a.history.List(ctx, *limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tSTATUS\tCATEGORY\tPLATFORM\tFOCUS\tRESULT")
	for _, g := range generations {
		outcome := g.ArtifactURI
		if g.ErrorMessage != nil {
			outcome = *g.ErrorMessage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			g.CreatedAt.Local().Format(time.DateTime), g.Status, g.Category, g.Platform, g.Focus, outcome)
	}
	return tw.Flush()
}

func (a *app) whoami(stdout io.Writer) error {
	claims, err := a.gate.Claims()
	if errors.Is(err, auth.ErrOpaqueToken) {
		session, _ := a.gate.Session()
		fmt.Fprintf(stdout, "%s (opaque token)\n", session.Username)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "subject:  %s\n", claims.Subject)
	if claims.Issuer != "" {
		fmt.Fprintf(stdout, "issuer:   %s\n", claims.Issuer)
	}
	if claims.IssuedAt != nil {
		fmt.Fprintf(stdout, "issued:   %s\n", claims.IssuedAt.Local().Format(time.DateTime))
	}
	if claims.ExpiresAt != nil {
		fmt.Fprintf(stdout, "expires:  %s\n", claims.ExpiresAt.Local().Format(time.DateTime))
	}
	return nil
}

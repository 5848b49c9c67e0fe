// Command iw is a CLI client for the incident-management API: login, incident
// list/detail/status updates, report handling, and a watch mode that polls
// for newly reported incidents.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ngabriel/incident-watch/internal/api"
	"github.com/ngabriel/incident-watch/internal/config"
	"github.com/ngabriel/incident-watch/internal/errs"
	"github.com/ngabriel/incident-watch/internal/filter"
	"github.com/ngabriel/incident-watch/internal/model"
	"github.com/ngabriel/incident-watch/internal/poll"
	"github.com/ngabriel/incident-watch/internal/session"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `iw CLI
Usage:
  iw [-config file] [-base-url URL] <cmd> [args]

Commands:
  version
  login        -u <username> -p <password>       (saves session)
  logout
  whoami
  list         [-status S] [-priority P] [-category C] [-search TERM] [-json]
  show         -id <uuid>
  set-status   -id <uuid> -status <EN_ATTENTE|EN_TRAITEMENT|TERMINE|FERME>
  reports
  report       -start YYYY-MM-DD -end YYYY-MM-DD [-o file]
  fetch-report -name <filename> [-o file]
  watch        [-interval 30s]
`)
	os.Exit(2)
}

// main wires config, session, and client, then dispatches the subcommand.
func main() {
	cfgPath := flag.String("config", defaultConfigPath(), "config file (YAML)")
	baseURL := flag.String("base-url", "", "API base URL (overrides config)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fail(err)
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}

	sess := session.New(session.DefaultDir())
	gw := api.NewGateway(cfg.BaseURL, cfg.Timeout, sess, nil)
	client := api.New(gw, sess, nil)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout+5*time.Second)
	defer cancel()

	switch cmd {

	case "version":
		fmt.Printf("iw %s (%s)\n", version, buildDate)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		_ = fs.Parse(args)
		if *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}
		resp, err := client.Login(ctx, *u, *p)
		if err != nil {
			fail(err)
		}
		name := resp.UserName
		if name == "" {
			name = *u
		}
		fmt.Printf("logged in as %s\n", name)

	case "logout":
		sess.ClearSession()
		fmt.Println("ok")

	case "whoami":
		if !sess.IsAuthenticated() {
			fmt.Fprintln(os.Stderr, "not logged in")
			os.Exit(1)
		}
		fmt.Println(sess.DisplayName())

	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		status := fs.String("status", "", "filter by status")
		priority := fs.String("priority", "", "filter by priority")
		category := fs.String("category", "", "filter by category")
		search := fs.String("search", "", "case-insensitive substring over all fields")
		asJSON := fs.Bool("json", false, "print raw JSON")
		_ = fs.Parse(args)

		requireAuth(sess)
		list, err := client.FetchAllIncidents(ctx)
		if err != nil {
			failAuthAware(sess, err)
		}
		f := filter.Filter{
			Search:   *search,
			Status:   model.Status(*status),
			Priority: model.Priority(*priority),
			Category: model.Category(*category),
		}
		matched := f.Apply(list)
		model.SortByNewest(matched)

		if *asJSON {
			printJSON(matched)
			return
		}
		if len(matched) == 0 {
			fmt.Println("no incidents")
			return
		}
		for _, inc := range matched {
			fmt.Printf("%s  %-14s %-9s %-12s %s\n",
				inc.ID, inc.Status.Label(), inc.Priority.Label(), inc.Category.Label(), inc.Title)
		}
		counts := model.CountByStatus(matched)
		fmt.Printf("\ntotal %d", len(matched))
		for _, s := range model.AllStatuses {
			if counts[s] > 0 {
				fmt.Printf("  %s: %d", s.Label(), counts[s])
			}
		}
		fmt.Println()

	case "show":
		fs := flag.NewFlagSet("show", flag.ExitOnError)
		id := fs.String("id", "", "incident id (uuid)")
		_ = fs.Parse(args)
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		if _, err := model.ParseID(*id); err != nil {
			fail(err)
		}

		requireAuth(sess)
		// The API has no single-incident endpoint; the detail view selects
		// from the full collection.
		list, err := client.FetchAllIncidents(ctx)
		if err != nil {
			failAuthAware(sess, err)
		}
		for _, inc := range list {
			if inc.ID == *id {
				printJSON(inc)
				return
			}
		}
		fail(errs.WithStatus(404, "incident not found", errs.ErrNotFound))

	case "set-status":
		fs := flag.NewFlagSet("set-status", flag.ExitOnError)
		id := fs.String("id", "", "incident id (uuid)")
		status := fs.String("status", "", "new status (wire value)")
		_ = fs.Parse(args)
		if *id == "" || *status == "" {
			fmt.Fprintln(os.Stderr, "need -id and -status")
			os.Exit(1)
		}
		st := model.Status(*status)
		if !st.Valid() {
			fail(fmt.Errorf("unknown status %q", *status))
		}

		requireAuth(sess)
		inc, err := client.UpdateIncidentStatus(ctx, *id, st)
		if err != nil {
			failAuthAware(sess, err)
		}
		fmt.Printf("incident %s is now %q\n", inc.ID, inc.Status.Label())

	case "reports":
		requireAuth(sess)
		names, err := client.ListGeneratedReports(ctx)
		if err != nil {
			failAuthAware(sess, err)
		}
		if len(names) == 0 {
			fmt.Println("no reports")
			return
		}
		for _, n := range names {
			fmt.Println(n)
		}

	case "report":
		fs := flag.NewFlagSet("report", flag.ExitOnError)
		start := fs.String("start", "", "start date (YYYY-MM-DD)")
		end := fs.String("end", "", "end date (YYYY-MM-DD)")
		out := fs.String("o", "", "output file (default derived from dates)")
		_ = fs.Parse(args)
		if *start == "" || *end == "" {
			fmt.Fprintln(os.Stderr, "need -start and -end")
			os.Exit(1)
		}
		for _, d := range []string{*start, *end} {
			if _, err := time.Parse("2006-01-02", d); err != nil {
				fail(fmt.Errorf("bad date %q: want YYYY-MM-DD", d))
			}
		}

		requireAuth(sess)
		data, err := client.GenerateReport(ctx, *start, *end)
		if err != nil {
			failAuthAware(sess, err)
		}
		name := *out
		if name == "" {
			name = api.ReportFilename(*start, *end)
		}
		if err := os.WriteFile(name, data, 0o644); err != nil {
			fail(err)
		}
		fmt.Printf("wrote %s (%d bytes)\n", name, len(data))

	case "fetch-report":
		fs := flag.NewFlagSet("fetch-report", flag.ExitOnError)
		nameFlag := fs.String("name", "", "report filename")
		out := fs.String("o", "", "output file (default: same name)")
		_ = fs.Parse(args)
		if *nameFlag == "" {
			fmt.Fprintln(os.Stderr, "need -name")
			os.Exit(1)
		}

		requireAuth(sess)
		data, err := client.DownloadReport(ctx, *nameFlag)
		if err != nil {
			failAuthAware(sess, err)
		}
		name := *out
		if name == "" {
			name = filepath.Base(*nameFlag)
		}
		if err := os.WriteFile(name, data, 0o644); err != nil {
			fail(err)
		}
		fmt.Printf("wrote %s (%d bytes)\n", name, len(data))

	case "watch":
		fs := flag.NewFlagSet("watch", flag.ExitOnError)
		interval := fs.Duration("interval", cfg.PollInterval, "poll interval")
		_ = fs.Parse(args)

		requireAuth(sess)
		runWatch(client, sess, *interval)

	default:
		usage()
	}
}

// runWatch polls until interrupted, printing one line per new incident.
func runWatch(client *api.Client, sess *session.Store, interval time.Duration) {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := poll.New(
		client.FetchAllIncidents,
		interval,
		func(e poll.Event) {
			fmt.Printf("new incident: %s - %s (status: %s)\n", e.ID, e.Title, e.Status)
		},
		sess.ClearSession,
		logger,
	)

	err := w.Run(ctx)
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		fmt.Fprintln(os.Stderr, "session expired; run `iw login`")
		os.Exit(1)
	case errors.Is(err, context.Canceled):
		// interrupted by the user
	case err != nil:
		fail(err)
	}
}

// ---- helpers ----

func defaultConfigPath() string {
	dir := session.DefaultDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// requireAuth exits early when no session is held; the API would answer 401
// anyway, this just gives a clearer message.
func requireAuth(sess *session.Store) {
	if !sess.IsAuthenticated() {
		fmt.Fprintln(os.Stderr, "not logged in; run `iw login -u USER -p PASS`")
		os.Exit(1)
	}
}

// failAuthAware clears the session on 401/403 before failing, sending the
// user back to login the way the dashboard redirects.
func failAuthAware(sess *session.Store, err error) {
	if errs.IsAuthStatus(err) {
		sess.ClearSession()
		fmt.Fprintln(os.Stderr, "session rejected by server; run `iw login`")
		os.Exit(1)
	}
	fail(err)
}

func fail(err error) {
	if s := errs.StatusOf(err); s != 0 {
		fmt.Fprintf(os.Stderr, "error: %s (status %d)\n", errs.MessageOf(err), s)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/antibyte/retrocalc/pkg/auth"
	"github.com/antibyte/retrocalc/pkg/calculator"
	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/programs"
	"github.com/antibyte/retrocalc/pkg/session"
	"github.com/antibyte/retrocalc/pkg/terminal"
	tlsmanager "github.com/antibyte/retrocalc/pkg/tls"
	"github.com/antibyte/retrocalc/pkg/tui"
)

func main() {
	configPath := flag.String("config", "settings.cfg", "path to the settings file")
	tuiProgram := flag.String("tui", "", "run a stored program `NAME` or a program FILE in the terminal")
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of `PASSWORD` for [Admin] password_hash and exit")
	selfSigned := flag.String("self-signed", "", "write a self-signed certificate for `HOST` to the [TLS] cert files and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	if err := configuration.Initialize(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	logger.ConfigInfo("configuration loaded from %s", *configPath)

	if *selfSigned != "" {
		if err := tlsmanager.GenerateSelfSigned(tlsmanager.LoadSettings(), *selfSigned, 365*24*time.Hour); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	store, err := openStore()
	if err != nil {
		logger.Fatal(logger.AreaDatabase, "program library unavailable: %v", err)
	}
	defer store.Close()

	if *tuiProgram != "" {
		if err := runTUI(store, *tuiProgram); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(store); err != nil {
		logger.Fatal(logger.AreaGeneral, "server failed: %v", err)
	}
}

// openStore opens the program library and adds catalog programs it lacks.
func openStore() (*programs.Store, error) {
	path := configuration.GetString("Database", "path", "programs.db")
	store, err := programs.Open(path)
	if err != nil {
		return nil, err
	}
	entries, err := programs.LoadCatalog(configuration.GetString("Database", "catalog_file", ""))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	added, err := store.Seed(context.Background(), entries)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("seeding catalog: %w", err)
	}
	logger.Info(logger.AreaDatabase, "program library %s ready (%d catalog programs added)", path, added)
	return store, nil
}

// runTUI runs a program file, or a stored program by name, until the user
// quits.
func runTUI(store *programs.Store, arg string) error {
	name, src, err := resolveProgram(store, arg)
	if err != nil {
		return err
	}
	// WARN and above are mirrored to the standard logger, which would draw
	// over the alternate screen.
	log.SetOutput(io.Discard)

	keys, err := calculator.LoadKeyMap(configuration.GetString("Calculator", "keymap_file", ""))
	if err != nil {
		return err
	}
	calc := calculator.New(
		calculator.WithKeyMap(keys),
		calculator.WithStepsPerTick(configuration.GetInt("Server", "steps_per_tick", 1)),
	)
	if err := calc.Load(name, src); err != nil {
		return err
	}
	logger.Info(logger.AreaTUI, "running %s in the terminal", name)
	return tui.Run(calc, configuration.GetDuration("Server", "tick_interval", 50*time.Millisecond))
}

func resolveProgram(store *programs.Store, arg string) (name, src string, err error) {
	if data, err := os.ReadFile(arg); err == nil {
		base := strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
		if name, err = programs.NormalizeName(base); err != nil {
			name = "FILE"
		}
		return name, string(data), nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", "", err
	}
	p, err := store.Get(context.Background(), arg)
	if err != nil {
		return "", "", err
	}
	return p.Name, p.Source, nil
}

func serve(store *programs.Store) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := session.NewManager()
	term := terminal.NewHandler(sessions, store)

	mux := http.NewServeMux()
	programs.NewHandler(store).Register(mux)
	term.Register(mux)
	mux.HandleFunc("/api/status", auth.WithCORS("GET", func(w http.ResponseWriter, r *http.Request) {
		auth.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"sessions": sessions.Count(),
			"clients":  term.ClientCount(),
		})
	}))

	tlsMgr, err := tlsmanager.NewManager(tlsmanager.LoadSettings())
	if err != nil {
		return err
	}

	go sessions.Run(ctx, configuration.GetDuration("Session", "cleanup_interval", 5*time.Minute))
	go term.PruneRateLimits(ctx, time.Minute)

	servers := []*http.Server{{
		Addr:              ":" + configuration.GetString("Server", "port", "8080"),
		Handler:           tlsMgr.HTTPHandler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if tlsMgr.Enabled() {
		servers = append(servers, &http.Server{
			Addr:              tlsMgr.HTTPSAddr(),
			Handler:           mux,
			TLSConfig:         tlsMgr.Config(),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			var err error
			if srv.TLSConfig != nil {
				logger.Info(logger.AreaGeneral, "HTTPS server listening on %s", srv.Addr)
				err = srv.ListenAndServeTLS("", "")
			} else {
				logger.Info(logger.AreaGeneral, "HTTP server listening on %s", srv.Addr)
				err = srv.ListenAndServe()
			}
			if !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(srv)
	}

	select {
	case <-ctx.Done():
		logger.Info(logger.AreaGeneral, "shutting down")
	case err = <-errCh:
		logger.Error(logger.AreaGeneral, "server stopped: %v", err)
	}

	term.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			logger.Warn(logger.AreaGeneral, "shutdown of %s: %v", srv.Addr, serr)
		}
	}
	return err
}

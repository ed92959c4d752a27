package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/jmcleod/vpnca/api"
)

var (
	port    int
	htmlDir string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the CA daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		a := api.New(e.svc, api.WithLogger(e.log))

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		// Static redemption pages, if the operator ships them. Registered as
		// the fallback handler so the mounted API router inherits it.
		if htmlDir != "" {
			if _, err := os.Stat(htmlDir); err == nil {
				r.NotFound(http.FileServer(http.Dir(htmlDir)).ServeHTTP)
			}
		}

		r.Mount("/", a.Router())

		// Scheduled renewal scans.
		var scheduler *cron.Cron
		if e.params.RenewalSchedule != "" {
			scheduler = cron.New()
			_, err := scheduler.AddFunc(e.params.RenewalSchedule, func() {
				renewals, err := e.svc.ScanAndRenew(context.Background(), e.params.RenewalWindowDays)
				if err != nil {
					e.log.Error("scheduled renewal scan failed", "error", err)
					return
				}
				e.log.Info("scheduled renewal scan complete", "renewals", renewals)
			})
			if err != nil {
				return fmt.Errorf("invalid renewal schedule %q: %w", e.params.RenewalSchedule, err)
			}
			scheduler.Start()
			defer scheduler.Stop()
		}

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		done := make(chan error, 1)
		go func() {
			var err error
			if e.params.TLSCert != "" && e.params.TLSKey != "" {
				err = server.ListenAndServeTLS(e.params.TLSCert, e.params.TLSKey)
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		e.log.Info("server started", "port", port, "data", dataDir)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			e.log.Info("shutting down", "signal", sig.String())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			// Let in-flight pipelines finish their status transition.
			e.svc.Wait()
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 3000, "Port to listen on")
	serverCmd.Flags().StringVar(&htmlDir, "html-dir", filepath.Join(".", "html"), "Directory of static pages to serve")
}

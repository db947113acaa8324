package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the background feed scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if cfg.Scheduler.Enabled {
				if err := engine.StartScheduler(ctx); err != nil {
					return err
				}
				defer engine.StopScheduler()
			}

			mux := newRouter(engine, cfg.Server.JWTSecret)

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      logging(recovery(mux)),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			// Graceful shutdown on SIGINT/SIGTERM
			done := make(chan os.Signal, 1)
			signal.Notify(done, os.Interrupt, syscall.SIGTERM)

			go func() {
				log.Printf("suprss: listening on %s", cfg.Server.Addr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("suprss: %v", err)
				}
			}()

			<-done
			log.Println("suprss: shutting down...")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			log.Println("suprss: stopped")
			return nil
		},
	}
}

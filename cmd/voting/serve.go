package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sevotec/voting-service/adapters/queue"
	"github.com/sevotec/voting-service/service"
	transporthttp "github.com/sevotec/voting-service/transport/http"
	"github.com/spf13/cobra"
)

var (
	serveAddr       string
	serveWithWorker bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides VOTING_LISTEN_ADDR)")
	serveCmd.Flags().BoolVar(&serveWithWorker, "with-worker", true, "Run the submission worker in-process")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the voting API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := newLogger()
		a, err := newApp(ctx, log)
		if err != nil {
			return err
		}
		defer a.Close()

		if serveAddr != "" {
			a.cfg.ListenAddr = serveAddr
		}

		pool := service.NewTokenPool(a.store, a.tokenWarehouse(), log)
		if _, err := pool.Hydrate(ctx); err != nil {
			log.Warn("starting with a cold token pool", "error", err)
		}

		jobs := queue.NewPublisher(a.publisher, a.store, log)
		votes := service.NewVoteService(a.store, a.store, pool, a.census, jobs, log)

		gin.SetMode(gin.ReleaseMode)
		router := transporthttp.SetupRouter(votes, pool, transporthttp.GateConfig{
			APIKey:    a.cfg.APIKey,
			Tokenizer: a.tokenizer,
			Codec:     a.codec,
			Sender:    a.gateway,
		}, log)

		errCh := make(chan error, 2)

		if serveWithWorker {
			worker, err := a.newWorker()
			if err != nil {
				return err
			}
			defer worker.Close()
			go func() { errCh <- worker.Run(ctx) }()
		}

		srv := &http.Server{
			Addr:              a.cfg.ListenAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("voting service listening", "addr", a.cfg.ListenAddr, "service", a.cfg.ServiceName)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil {
				log.Error("component stopped", "error", err)
			}
			stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

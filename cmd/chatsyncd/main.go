package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/stub"
	pkgconfig "github.com/BrunoPereyra/nexo-vecinal-sub000/pkg/config"
	"github.com/BrunoPereyra/nexo-vecinal-sub000/pkg/log"
)

func main() {
	log.Init(log.Config{
		Level:       pkgconfig.GetEnv("LOG_LEVEL", "info"),
		ServiceName: "chatsyncd",
	})
	l := log.L()

	addr := ":" + pkgconfig.GetEnv("PORT", "8090")

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	srv := stub.NewServer()
	srv.RegisterRoutes(r)

	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		l.Info().Str("addr", addr).Msg("chatsyncd listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Warn().Err(err).Msg("forced shutdown")
	}
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"stagetalk/app/client/provider"
	"stagetalk/app/config"
	"stagetalk/app/server"
	"stagetalk/app/service/engine"
	"stagetalk/app/service/queue"
	"stagetalk/app/service/quota"
	"stagetalk/app/service/store"
	"stagetalk/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.ProvideValue(di, provider.NewRegistry(cfg))
	do.ProvideValue(di, provider.NewClients(cfg))
	do.Provide(di, quota.New)
	do.Provide(di, store.New)
	do.Provide(di, queue.New)
	do.Provide(di, engine.New)
	do.Provide(di, server.New)

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	go do.MustInvoke[*quota.Service](di).RunResetLoop(appCtx)
	go do.MustInvoke[*engine.Service](di).Run(appCtx)
	go do.MustInvoke[*server.Server](di).Run(appCtx)

	<-appCtx.Done()
}

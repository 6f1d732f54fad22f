package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"contract-engine/chain"
	"contract-engine/config"
	"contract-engine/database"
	"contract-engine/logger"
	"contract-engine/poller"
	"contract-engine/request"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var requestFlag = flag.String("request", "", "Resolve a single request by id, print its status and exit")

func main() {
	flag.Parse()

	cfg, err := config.BuildConfig()
	if err != nil {
		fmt.Println("Config error: ", err)
		return
	}
	config.GlobalConfigCallback.Call(cfg)
	defer logger.SyncFileLogger()

	logger.Info("Running with configuration: networks: %v, database: %s", cfg.Chain.Networks, cfg.DB.Database)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *requestFlag); err != nil {
		logger.Error("Run error: %s", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, requestID string) error {
	db, err := database.ConnectAndInitialize(ctx, &cfg.DB)
	if err != nil {
		return errors.Wrap(err, "Database connect and initialize")
	}

	endpoints := chain.NewResolver(cfg.Chain)
	defer endpoints.Close()

	store := database.NewStore(db)
	service := request.NewService(store, request.NewResolver(endpoints), cfg.Requests)

	if requestID != "" {
		return resolveOne(ctx, store, service, requestID)
	}

	return poller.New(cfg.Poller, store, service).Run(ctx)
}

func resolveOne(ctx context.Context, store *database.Store, service *request.Service, requestID string) error {
	id, err := uuid.Parse(requestID)
	if err != nil {
		return errors.Wrapf(err, "request id %q", requestID)
	}

	resp, err := service.Resolve(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "Resolve %s", id)
	}
	if err := store.SaveSnapshot(ctx, resp); err != nil {
		return err
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

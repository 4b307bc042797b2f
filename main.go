package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlexandroAurellino/live-shop-bot/catalog"
	"github.com/AlexandroAurellino/live-shop-bot/chat"
	"github.com/AlexandroAurellino/live-shop-bot/classifier"
	"github.com/AlexandroAurellino/live-shop-bot/database"
	"github.com/AlexandroAurellino/live-shop-bot/engine"
	"github.com/AlexandroAurellino/live-shop-bot/logging"
	"github.com/AlexandroAurellino/live-shop-bot/metrics"
	"github.com/AlexandroAurellino/live-shop-bot/obs"
	"github.com/AlexandroAurellino/live-shop-bot/web"
)

func main() {
	var dbPath string
	var mediaDir string
	var webAddr string
	var metricsAddr string
	var logLevel string
	var autostart bool
	flag.StringVar(&dbPath, "db", "app.db", "Path to the sqlite database")
	flag.StringVar(&mediaDir, "media", "", "Override the media directory setting")
	flag.StringVar(&webAddr, "web-addr", ":8000", "Address for the control API and dashboard feed")
	flag.StringVar(&metricsAddr, "metrics-addr", ":6967", "Address for the metrics server")
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&autostart, "autostart", false, "Start a session immediately using stored settings")
	flag.Parse()

	logger := logging.NewLogger(logging.LogLevel(logLevel), os.Stdout)

	server := metrics.SetupServer(metricsAddr)
	go server.Run()

	db, err := database.NewSqlite(dbPath, logger)
	if err != nil {
		log.Fatalln(err)
	}
	defer db.Close()

	hub := web.NewHub(logger)

	factory := func() (*engine.Session, error) {
		ctx := context.Background()

		settings, err := db.LoadSettings(ctx)
		if err != nil {
			return nil, err
		}
		cfg, err := engine.BuildConfig(settings)
		if err != nil {
			return nil, err
		}
		if mediaDir != "" {
			cfg.MediaDir = mediaDir
		}

		products, err := db.ListProducts(ctx)
		if err != nil {
			return nil, err
		}
		cat := catalog.New(products)

		cls, err := classifier.New(cfg.ClassifierAPIKey, cfg.ClassifierBaseURL, cfg.ClassifierModel, logger)
		if err != nil {
			return nil, err
		}

		player := obs.NewClient(cfg.OBSHost, cfg.OBSPort, cfg.OBSPassword, logger)

		listen := func(onComment func(user, text string)) engine.Listener {
			return chat.NewListener(cfg.StreamTarget, cfg.ChatUsername, cfg.ChatToken, onComment, logger)
		}

		return engine.NewSession(cfg, cat, cls, player, listen, hub, logger), nil
	}

	manager := engine.NewManager(factory, logger)

	if autostart {
		if err := manager.Start(); err != nil {
			logger.Error("autostart failed", "error", err.Error())
		}
	}

	api := web.NewServer(manager, db, db, hub, logger)
	go func() {
		if err := api.Run(webAddr); err != nil {
			log.Fatalln(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	logger.Info("bot is up", "webAddr", webAddr, "metricsAddr", metricsAddr)
	<-stop

	logger.Info("shutting down")
	manager.Stop()
}

package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	cronkite "github.com/newsdesk-ai/cronkite"
	"github.com/newsdesk-ai/cronkite/internal/config"
	"github.com/newsdesk-ai/cronkite/reporter"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	configPath  = flag.String("config", "config.yaml", "Path to config file")
	listenAddr  = flag.String("addr", "", "Listen address, overrides config")
	dbPath      = flag.String("db", "", "Path to database, overrides config")
	outputDir   = flag.String("output", "", "Directory for saved reports, overrides config")
	llamaServer = flag.String("llama", "", "Address of running llama server, typically http://localhost:8080")
	llamaSeed   = flag.Int("seed", 0, "Random seed to llama")
)

func main() {
	flag.Parse()

	// A local .env is optional
	godotenv.Load()

	cfg, err := config.Loader{}.Load(*configPath)
	if err != nil {
		logrus.Fatal(err)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *llamaServer != "" {
		cfg.Llama.Server = *llamaServer
	}
	if *llamaSeed != 0 {
		cfg.Llama.Seed = *llamaSeed
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	c, err := cronkite.Init(cronkite.InitOptions{
		GeminiAPIKey: cfg.Gemini.APIKey,
		GeminiModel:  cfg.Gemini.Model,
		OpenAIAPIKey: cfg.OpenAI.APIKey,
		OpenAIModel:  cfg.OpenAI.Model,
		LlamaServer:  cfg.Llama.Server,
		LlamaSeed:    cfg.Llama.Seed,
		HttpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	})
	if err != nil {
		logger.Fatal(err)
	}
	if !c.IsHealthy() {
		logger.Warnf("backend %s is not responding", c.Name())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := cronkite.NewDB(ctx, cfg.DBPath)
	if err != nil {
		logger.Fatal(err)
	}
	defer db.Close()

	agent := reporter.NewAgent(c.Backend, cfg.OutputDir, logger.WithField("component", "reporter"))

	_, port, err := net.SplitHostPort(cfg.ListenAddr)
	if err != nil {
		logger.Fatalf("bad listen address %q: %s", cfg.ListenAddr, err)
	}
	srv := NewServer(agent, db, cfg.UploadsDir, port, logger.WithField("component", "server"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"addr":    cfg.ListenAddr,
			"backend": c.Name(),
			"model":   c.Model(),
		}).Info("server starting")

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal(err)
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/fluxcd/promoter/pkg/cache"
	"github.com/fluxcd/promoter/pkg/cluster"
	"github.com/fluxcd/promoter/pkg/cluster/kubernetes"
	"github.com/fluxcd/promoter/pkg/config"
	"github.com/fluxcd/promoter/pkg/dispatch"
	"github.com/fluxcd/promoter/pkg/event"
	"github.com/fluxcd/promoter/pkg/pipeline"
	"github.com/fluxcd/promoter/pkg/registry"
	regcache "github.com/fluxcd/promoter/pkg/registry/cache"
	"github.com/fluxcd/promoter/pkg/registry/cache/memcached"
	"github.com/fluxcd/promoter/pkg/registry/middleware"
	"github.com/fluxcd/promoter/pkg/remote"
)

const (
	memcacheUpdateInterval = time.Minute
	memcacheMaxIdleConns   = 16
	redisMaxConns          = 16
)

func main() {
	// Flag domain.
	fs := pflag.NewFlagSet("default", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "DESCRIPTION\n")
		fmt.Fprintf(os.Stderr, "  promoterd moves images between clusters on a schedule.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.PrintDefaults()
	}
	var (
		configPath = fs.StringP("config", "c", "promoter.yaml", "Path to the configuration file")
		layerName  = fs.String("layer", "server", "How to dispatch operations: standalone (run pipelines only) or server (also serve the API)")
		listenAddr = fs.StringP("listen", "l", "", "Listen address for API clients; overrides server.host and server.port in the configuration")
		noWarming  = fs.Bool("registry-disable-warming", false, "Do not keep the registry cache warm in the background")
	)
	fs.Parse(os.Args[1:])

	// Logger component.
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Log("err", err)
		os.Exit(1)
	}
	layer, err := dispatch.ParseLayer(*layerName)
	if err == nil && layer == dispatch.Client {
		err = fmt.Errorf("promoterd cannot run as a client; use promoctl")
	}
	if err != nil {
		logger.Log("err", err)
		os.Exit(1)
	}
	listen := cfg.Listen()
	if *listenAddr != "" {
		listen = *listenAddr
	}

	// Cluster component.
	var clusters cluster.Gateway
	{
		logger := log.With(logger, "component", "cluster")
		k8s, err := kubernetes.NewClusterFromKubeconfig(cfg.Kube, logger, cfg.Namespaces)
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		names, err := k8s.Clusters(context.Background())
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		logger.Log("clusters", strings.Join(names, ","), "namespaces", strings.Join(cfg.Namespaces, ","))
		clusters = cluster.NewCached(k8s, cache.New(cfg.CacheTTL()))
	}

	shutdown := make(chan struct{})
	shutdownWg := &sync.WaitGroup{}

	// Registry component.
	var (
		images registry.Gateway
		warmer *registry.Warmer
	)
	{
		logger := log.With(logger, "component", "registry")
		limiters := &middleware.RateLimiters{
			RPS:    cfg.Registry.RPS,
			Burst:  cfg.Registry.Burst,
			Logger: logger,
		}
		reg, err := registry.NewRemote(cfg.Docker, limiters, logger)
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}

		var shared regcache.Client
		switch {
		case cfg.Cache.Memcached != nil:
			mc := cfg.Cache.Memcached
			memcacheConfig := memcached.MemcacheConfig{
				Timeout:        mc.Timeout(),
				UpdateInterval: memcacheUpdateInterval,
				MaxIdleConns:   memcacheMaxIdleConns,
				Logger:         log.With(logger, "component", "memcached"),
			}
			var client *memcached.MemcacheClient
			if len(mc.Addresses) > 0 {
				client, err = memcached.NewFixedServerMemcacheClient(memcacheConfig, mc.Addresses...)
				if err != nil {
					logger.Log("err", err)
					os.Exit(1)
				}
				logger.Log("memcached", strings.Join(mc.Addresses, ","))
			} else {
				client = memcached.NewSRVMemcacheClient(memcacheConfig, mc.Hostname, mc.Service)
				logger.Log("memcached", mc.Hostname, "service", mc.Service)
			}
			defer client.Stop()
			shared = client
		case cfg.Cache.Redis != nil:
			client := regcache.NewRedisClient(regcache.RedisConfig{
				Addr:     cfg.Cache.Redis.Addr,
				Timeout:  cfg.Timeout(),
				MaxConns: redisMaxConns,
				Logger:   log.With(logger, "component", "redis"),
			})
			defer client.Stop()
			logger.Log("redis", cfg.Cache.Redis.Addr)
			shared = client
		}
		if shared != nil {
			shared = regcache.InstrumentClient(shared)
		}

		cached := registry.NewCached(registry.Instrument(reg), reg.Host(), cache.New(cfg.CacheTTL()), shared, cfg.WarmInterval(), logger)
		images = cached
		logger.Log("host", reg.Host(), "rps", cfg.Registry.RPS, "burst", cfg.Registry.Burst)

		if !*noWarming {
			warmer, err = registry.NewWarmer(cached, cfg.WarmInterval(), cfg.Timeout(), log.With(logger, "component", "warmer"))
			if err != nil {
				logger.Log("err", err)
				os.Exit(1)
			}
			warmer.Notify = func(repo string, added []string) {
				logger.Log("repo", repo, "new-tags", strings.Join(added, ","))
			}
		}
	}

	// Event component.
	var events event.Sink
	{
		sinks := event.Multi{event.LogSink{Logger: log.With(logger, "component", "events")}}
		if cfg.Events.Webhook != "" {
			sinks = append(sinks, event.NewWebhookSink(&http.Client{Timeout: cfg.Timeout()}, cfg.Events.Webhook))
			logger.Log("events", "webhook", "url", cfg.Events.Webhook)
		}
		events = sinks
	}

	// Dispatch component. The engine reaches the clusters and registry
	// through the dispatcher, so its calls are instrumented the same
	// way as API calls.
	var (
		table      *dispatch.Table
		dispatcher *dispatch.Dispatcher
	)
	{
		table, err = remote.NewTable(clusters, images, nil)
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		dispatcher, err = dispatch.New(table, dispatch.Config{
			Layer:   layer,
			Timeout: cfg.Timeout(),
			Logger:  log.With(logger, "component", "dispatch"),
		})
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
	}

	// Pipeline component.
	var engine *pipeline.Engine
	{
		logger := log.With(logger, "component", "pipelines")
		engine, err = pipeline.New(cfg.Descriptions(), remote.NewClusterClient(dispatcher), remote.NewRegistryClient(dispatcher), events, logger)
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		if err := remote.BindPipelines(table, engine); err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		for _, d := range cfg.Descriptions() {
			logger.Log("pipeline", d.Name, "from", d.From, "to", d.Target(), "cron", d.Cron)
		}
	}

	// Mechanical stuff.
	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	shutdownWg.Add(1)
	go engine.Loop(shutdown, shutdownWg)
	if warmer != nil {
		shutdownWg.Add(1)
		go warmer.Loop(shutdown, shutdownWg)
	}

	// HTTP transport component. Metrics are served by both layers;
	// only the server layer serves the API.
	go func() {
		logger := log.With(logger, "component", "http")
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if layer == dispatch.Server {
			mux.Handle("/", dispatch.NewHandler(dispatcher, dispatch.NewRouter(table)))
		}
		logger.Log("addr", listen, "layer", layer)
		errc <- http.ListenAndServe(listen, mux)
	}()

	// Go!
	logger.Log("exit", <-errc)
	close(shutdown)
	shutdownWg.Wait()
}

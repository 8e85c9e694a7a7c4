package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"smartmenu/config"
	"smartmenu/engine"
	"smartmenu/journal"
	"smartmenu/push"
	"smartmenu/snapcache"
	"smartmenu/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "smartmenu.yaml", "path to config file")
	hashPassword := flag.String("hash-password", "", "print a bcrypt hash for web.admin_password_hash and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("smartmenu-agent", Version)
		return
	}
	if *hashPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*hashPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		fmt.Println(string(hash))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Journal
	db, err := journal.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("smartmenu: journal open (%s)", cfg.Database.Driver)

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	redisOK := false
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("smartmenu: redis not available (%v), running without cache", err)
	} else {
		redisOK = true
		log.Printf("smartmenu: redis connected (%s)", cfg.Redis.Address)
	}
	cancel()
	defer redisClient.Close()

	// Snapshot cache
	var redisStore *snapcache.RedisStore
	if redisOK && cfg.Cache.Enabled {
		redisStore = snapcache.NewRedisStore(redisClient, cfg.Cache.KeyPrefix, cfg.Cache.TTL)
	}
	cache := snapcache.NewManager(db, redisStore)
	cache.SetRetention(cfg.Database.JournalKeep)
	if err := cache.SyncRedisFromJournal(); err != nil {
		log.Printf("smartmenu: sync snapshot cache: %v", err)
	}

	// Push channel
	sub, err := push.New(&cfg.Push, redisClient, nil)
	if err != nil {
		log.Fatalf("push: %v", err)
	}
	if sub != nil {
		log.Printf("smartmenu: push backend %s", cfg.Push.Backend)
	}

	// Engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		Cache:      cache,
		Push:       sub,
	})
	if err := eng.Start(); err != nil {
		log.Fatalf("start engine: %v", err)
	}
	defer eng.Stop()

	// Web server
	handler, stopWeb := www.NewRouter(eng)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("smartmenu: web console listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("smartmenu: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("smartmenu: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("smartmenu: stopped")
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/campus-stack/faculty-advisor/src/advisor/agents"
	"github.com/campus-stack/faculty-advisor/src/advisor/agents/core"
	"github.com/campus-stack/faculty-advisor/src/advisor/ai"
	"github.com/campus-stack/faculty-advisor/src/advisor/auth"
	"github.com/campus-stack/faculty-advisor/src/advisor/config"
	"github.com/campus-stack/faculty-advisor/src/advisor/container"
	"github.com/campus-stack/faculty-advisor/src/advisor/data"
	"github.com/campus-stack/faculty-advisor/src/advisor/retrieval"
	"github.com/campus-stack/faculty-advisor/src/advisor/session"
	"github.com/campus-stack/faculty-advisor/src/advisor/webserver"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Printf("loaded environment from .env")
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "advisor:advisor@tcp(localhost:3306)/advisor?parseTime=true"
	}
	db := data.MustMySQL(mysqlDSN)

	// Settings must be cached before config.Load so table values take effect.
	if err := data.LoadSettings(db); err != nil {
		log.Printf("failed to load settings: %v", err)
	}
	cfg := config.Load()
	rdb := data.MustRedis(cfg.RedisURL)

	c := container.New()

	c.MustRegister("tokens", container.Singleton, nil, func(container.Resolver) (any, error) {
		return auth.NewTokenService([]byte(cfg.JWTSecret), cfg.TokenLifetime, cfg.AllowedDomains), nil
	})
	c.MustRegister("users", container.Singleton, nil, func(container.Resolver) (any, error) {
		return auth.NewUserStore(db, cfg.AutoProvision), nil
	})
	c.MustRegister("session.store", container.Singleton, nil, func(container.Resolver) (any, error) {
		return session.NewRedisStore(rdb), nil
	})
	c.MustRegister("sessions", container.Singleton, []string{"session.store"}, func(r container.Resolver) (any, error) {
		store := container.MustResolve[session.Store](r, "session.store")
		return session.NewManager(store, cfg.SessionTTL, cfg.HistoryMax), nil
	})
	c.MustRegister("reasoner", container.Singleton, nil, func(container.Resolver) (any, error) {
		return ai.NewClient(ai.FactoryConfig{
			Provider:    cfg.AIProvider,
			APIKey:      cfg.AIKey,
			Endpoint:    cfg.AIEndpoint,
			Model:       cfg.AIModel,
			Temperature: cfg.AITemp,
			MaxTokens:   cfg.AIMaxTokens,
		}), nil
	})
	c.MustRegister("retrieval", container.Singleton, nil, func(container.Resolver) (any, error) {
		if cfg.RetrievalURL == "" {
			log.Printf("no retrieval endpoint configured; agents run without supporting material")
			return retrieval.NewNoopClient(), nil
		}
		return retrieval.NewHTTPClient(cfg.RetrievalURL), nil
	})
	c.MustRegister("memory", container.Singleton, nil, func(container.Resolver) (any, error) {
		return data.NewMemoryStore(db), nil
	})
	c.MustRegister("tools", container.Singleton, []string{"sessions"}, func(r container.Resolver) (any, error) {
		sessions := container.MustResolve[*session.Manager](r, "sessions")
		reg := agents.NewToolRegistry()
		if err := agents.RegisterBuiltins(reg, sessions); err != nil {
			return nil, err
		}
		return reg, nil
	})
	c.MustRegister("agents", container.Singleton,
		[]string{"sessions", "reasoner", "retrieval", "tools", "memory"},
		func(r container.Resolver) (any, error) {
			return agents.BuildManager(agents.Defaults(cfg.AIModel, cfg.AITemp, cfg.AIMaxTokens), agents.Deps{
				Sessions:     container.MustResolve[*session.Manager](r, "sessions"),
				Reasoner:     container.MustResolve[ai.Client](r, "reasoner"),
				Retrieval:    container.MustResolve[retrieval.Client](r, "retrieval"),
				Tools:        container.MustResolve[*agents.ToolRegistry](r, "tools"),
				Memory:       container.MustResolve[*data.MemoryStore](r, "memory"),
				StageTimeout: cfg.StageTimeout,
			})
		})

	router := webserver.New(webserver.Deps{
		Tokens:   container.MustResolve[*auth.TokenService](c, "tokens"),
		Users:    container.MustResolve[*auth.UserStore](c, "users"),
		Sessions: container.MustResolve[*session.Manager](c, "sessions"),
		Agents:   container.MustResolve[*core.Manager](c, "agents"),
		DB:       db,
		RDB:      rdb,
	})

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting HTTP server on port %s", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	log.Printf("faculty advisor API listening on %s (provider: %s, model: %s)", cfg.Port, cfg.AIProvider, cfg.AIModel)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
}

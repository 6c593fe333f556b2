// devproxy is the local development proxy: it discovers the backend once,
// answers GET /api-base with the effective base as plain text, and reverse
// proxies everything else to it.
package main

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autofighter/client/internal/config"
	"github.com/autofighter/client/internal/discovery"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.LoadRuntime()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	addr := os.Getenv("AF_PROXY_ADDR")
	if addr == "" {
		addr = ":59003"
	}

	resolver := discovery.NewResolver(discovery.Config{
		Override:   cfg.APIBase,
		Candidates: cfg.CandidateURLs(),
		Fallback:   cfg.FallbackURL(),
	}, &http.Client{}, clockwork.NewRealClock())

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	base, err := resolver.Base(ctx)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("backend discovery failed")
	}
	target, err := url.Parse(base)
	if err != nil {
		log.Fatal().Err(err).Str("base", base).Msg("discovered base is not a URL")
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("proxy error")
		http.Error(w, "backend unavailable", http.StatusBadGateway)
	}

	r := chi.NewRouter()
	r.Get("/api-base", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(base))
	})
	r.Handle("/*", proxy)

	handler := cors.AllowAll().Handler(r)

	log.Info().Str("addr", addr).Str("base", base).Msg("dev proxy listening")
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal().Err(err).Msg("proxy server failed")
	}
}

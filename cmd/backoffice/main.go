// File path: cmd/backoffice/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/cascadia-pm/backoffice/internal/api"
	"github.com/cascadia-pm/backoffice/internal/chat"
	"github.com/cascadia-pm/backoffice/internal/common"
	"github.com/cascadia-pm/backoffice/internal/config"
	"github.com/cascadia-pm/backoffice/internal/listings"
	"github.com/cascadia-pm/backoffice/internal/llm"
	"github.com/cascadia-pm/backoffice/internal/rent"
	"github.com/cascadia-pm/backoffice/internal/retrieval"
	"github.com/cascadia-pm/backoffice/internal/store"
	"github.com/cascadia-pm/backoffice/internal/vector"
)

func main() {
	logger := common.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("backoffice: .env file not loaded", "error", err)
	} else {
		logger.Info("backoffice: environment loaded from .env")
	}

	addr := flag.String("addr", ":8082", "listen address")
	dbPath := flag.String("db", defaultDBPath(), "path to the SQLite database")
	chromaHost := flag.String("chroma-host", "", "ChromaDB host override")
	chromaCollection := flag.String("chroma-collection", "", "ChromaDB collection override")
	flag.Parse()

	logger.Info("backoffice: startup initiated", "addr", *addr, "db", *dbPath)

	st, err := store.Open(*dbPath)
	if err != nil {
		logger.Error("backoffice: store initialization failed", "error", err)
		fmt.Println("store error:", err)
		os.Exit(1)
	}
	defer st.Close()

	market, err := config.LoadMarket()
	if err != nil {
		logger.Error("backoffice: market config load failed", "error", err)
		fmt.Println("market config error:", err)
		os.Exit(1)
	}
	logger.Info("backoffice: market config loaded", "serviced_towns", len(market.ServicedTowns))

	provider := llm.NewProvider()
	logger.Info("backoffice: llm provider ready", "provider", provider.Name())

	vectorCfg, err := vector.LoadConfig()
	if err != nil {
		logger.Error("backoffice: vector config load failed", "error", err)
		fmt.Println("vector config error:", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*chromaHost); trimmed != "" {
		vectorCfg.Host = trimmed
	}
	if trimmed := strings.TrimSpace(*chromaCollection); trimmed != "" {
		vectorCfg.Collection = trimmed
	}
	var vectorStore vector.Store
	if client, err := vector.New(ctx, vectorCfg); err != nil {
		logger.Warn("backoffice: chromadb unreachable, vector search disabled", "error", err)
	} else {
		vectorStore = client
		defer client.Close()
		logger.Info("backoffice: chromadb available", "collection", client.Collection())
	}

	retrievalCfg, err := retrieval.LoadConfig()
	if err != nil {
		logger.Error("backoffice: retrieval config load failed", "error", err)
		fmt.Println("retrieval config error:", err)
		os.Exit(1)
	}
	engine := retrieval.NewEngine(st, vectorStore, provider, retrievalCfg)
	assistant := chat.NewAssistant(provider, engine)

	var listingsProvider listings.Provider
	if client := listings.NewClientFromEnv(); client != nil {
		listingsProvider = client
		logger.Info("backoffice: competing-listings client configured")
	} else {
		logger.Info("backoffice: competing listings not configured")
	}
	calculator := rent.NewCalculator(st, listingsProvider, market)

	server := api.NewServer(st, engine, assistant, calculator, vectorStore, provider, market)

	reachable := *addr
	if strings.HasPrefix(reachable, ":") {
		reachable = "localhost" + reachable
	}
	logger.Info("backoffice: server listening", "addr", *addr, "health", fmt.Sprintf("http://%s/healthz", reachable))
	fmt.Printf("Serving on %s\n", *addr)
	if err := http.ListenAndServe(*addr, server); err != nil {
		logger.Error("backoffice: server stopped", "error", err)
		fmt.Println("server stopped:", err)
	}
}

func defaultDBPath() string {
	return filepath.Join("data", "backoffice.db")
}

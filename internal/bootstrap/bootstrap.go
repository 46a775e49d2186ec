// Package bootstrap builds the services both binaries share from config.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/zhouzirui/medassist/backend/internal/config"
	"github.com/zhouzirui/medassist/backend/internal/service/assistant"
	"github.com/zhouzirui/medassist/backend/internal/service/simulator"
	"github.com/zhouzirui/medassist/backend/internal/storage"
	"github.com/zhouzirui/medassist/backend/internal/stream"
)

// NewAssistant builds the response selector. A backend that cannot be
// created is logged and replaced by the simulator.
func NewAssistant(ctx context.Context, cfg *config.Config, streamer *stream.Streamer) (*assistant.Service, error) {
	opts := []simulator.Option{simulator.WithThinkingDelay(cfg.Simulator.ThinkingDelay)}
	if cfg.Simulator.CatalogPath != "" {
		catalog, err := simulator.LoadCatalog(cfg.Simulator.CatalogPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, simulator.WithCatalog(catalog))
		log.Printf("[bootstrap] simulator catalog loaded from %s", cfg.Simulator.CatalogPath)
	}
	sim := simulator.New(streamer, opts...)

	switch cfg.Backend.Kind {
	case config.BackendRAG:
		client := assistant.NewRemoteClient(cfg.Backend.RAGEndpoint, cfg.Backend.RAGTimeout)
		log.Printf("[bootstrap] answering through retrieval backend at %s", client.Endpoint())
		return assistant.New(client, sim, streamer, assistant.WithBackendName(config.BackendRAG)), nil

	case config.BackendArk:
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Printf("[bootstrap] ark model unavailable, answering from simulator only: %v", err)
			return assistant.New(nil, sim, streamer), nil
		}
		backend, err := assistant.NewArkBackend(ctx, chatModel)
		if err != nil {
			return nil, err
		}
		log.Printf("[bootstrap] answering through ark model %s", cfg.AI.Model)
		return assistant.New(backend, sim, streamer, assistant.WithBackendName(config.BackendArk)), nil

	default:
		log.Println("[bootstrap] no backend configured, answering from simulator only")
		return assistant.New(nil, sim, streamer), nil
	}
}

// NewStore opens the configured key-value store. The returned func releases
// it.
func NewStore(ctx context.Context, cfg config.StoreConfig) (storage.KV, func(), error) {
	switch cfg.Kind {
	case config.StoreRedis:
		kv, err := storage.NewRedisKV(ctx, storage.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Printf("[bootstrap] storing chats in redis at %s", cfg.RedisAddr)
		return kv, func() { _ = kv.Close() }, nil
	case config.StoreMemory:
		log.Println("[bootstrap] storing chats in memory")
		return storage.NewMemoryKV(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Kind)
	}
}

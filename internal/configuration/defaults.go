package configuration

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults mirror the original deployment: a local qdrant, a local ollama
// serving phi3:mini for generation and nomic-embed-text for embeddings,
// and a 70s generation deadline raced against the fallback.
const (
	DefaultGatewayAddr        = "127.0.0.1:8090"
	DefaultWorkerAddr         = "127.0.0.1:8091"
	DefaultGenerationDeadline = 70 * time.Second
	DefaultRetrievalDeadline  = 20 * time.Second
	DefaultPoolSize           = 8

	DefaultProbeInterval = 5 * time.Second
	DefaultMaxFailures   = 3
	DefaultRemoveAfter   = 12
	DefaultProbeTimeout  = 2 * time.Second

	DefaultQdrantEndpoint   = "http://127.0.0.1:6333"
	DefaultQdrantCollection = "policies"
	DefaultTopK             = 5
	DefaultQdrantTimeout    = 20 * time.Second

	DefaultOllamaEndpoint   = "http://127.0.0.1:11434"
	DefaultEmbeddingModel   = "nomic-embed-text"
	DefaultEmbeddingTimeout = 20 * time.Second

	DefaultGenerationModel   = "phi3:mini"
	DefaultTemperature       = 0.2
	DefaultTopP              = 0.95
	DefaultGenTopK           = 50
	DefaultNumPredict        = 500
	DefaultNumCtx            = 3584
	DefaultRepeatPenalty     = 1.12
	DefaultGenerationTimeout = 65 * time.Second

	DefaultRetryMaxAttempts     = 3
	DefaultRetryInitialInterval = 500 * time.Millisecond
	DefaultRetryMaxInterval     = 5 * time.Second
	DefaultRetryMultiplier      = 2.0

	DefaultCorpusDir      = "data/policies"
	DefaultScraperBaseURL = "https://policies.northeastern.edu"
	DefaultScraperTimeout = 15 * time.Second
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Gateway: GatewayConfig{
			Addr:               DefaultGatewayAddr,
			GenerationDeadline: DefaultGenerationDeadline,
			RetrievalDeadline:  DefaultRetrievalDeadline,
			PoolSize:           DefaultPoolSize,
		},
		Worker: WorkerConfig{
			Addr:       DefaultWorkerAddr,
			GatewayURL: "http://" + DefaultGatewayAddr,
			Roles:      []string{"retrieval", "generation"},
		},
		Membership: MembershipConfig{
			ProbeInterval: DefaultProbeInterval,
			MaxFailures:   DefaultMaxFailures,
			RemoveAfter:   DefaultRemoveAfter,
			ProbeTimeout:  DefaultProbeTimeout,
		},
		Qdrant: QdrantConfig{
			Endpoint:   DefaultQdrantEndpoint,
			Collection: DefaultQdrantCollection,
			TopK:       DefaultTopK,
			Timeout:    DefaultQdrantTimeout,
		},
		Embedding: EmbeddingConfig{
			Endpoint: DefaultOllamaEndpoint,
			Model:    DefaultEmbeddingModel,
			Timeout:  DefaultEmbeddingTimeout,
		},
		Generation: GenerationConfig{
			Endpoint:      DefaultOllamaEndpoint,
			Model:         DefaultGenerationModel,
			Temperature:   DefaultTemperature,
			TopP:          DefaultTopP,
			TopK:          DefaultGenTopK,
			NumPredict:    DefaultNumPredict,
			NumCtx:        DefaultNumCtx,
			RepeatPenalty: DefaultRepeatPenalty,
			Timeout:       DefaultGenerationTimeout,
		},
		Retry: RetryConfig{
			MaxAttempts:     DefaultRetryMaxAttempts,
			InitialInterval: DefaultRetryInitialInterval,
			MaxInterval:     DefaultRetryMaxInterval,
			Multiplier:      DefaultRetryMultiplier,
		},
		Corpus:  CorpusConfig{Dir: DefaultCorpusDir},
		Scraper: ScraperConfig{BaseURL: DefaultScraperBaseURL, OutDir: DefaultCorpusDir, Timeout: DefaultScraperTimeout},
	}
}

// FromEnv returns the defaults overridden by POLICYBOT_* environment
// variables.
func FromEnv() Config {
	cfg := Default()

	envString(&cfg.Gateway.Addr, "POLICYBOT_GATEWAY_ADDR")
	envDuration(&cfg.Gateway.GenerationDeadline, "POLICYBOT_GENERATION_DEADLINE")
	envDuration(&cfg.Gateway.RetrievalDeadline, "POLICYBOT_RETRIEVAL_DEADLINE")
	envInt(&cfg.Gateway.PoolSize, "POLICYBOT_POOL_SIZE")

	envString(&cfg.Worker.Addr, "POLICYBOT_WORKER_ADDR")
	envString(&cfg.Worker.AdvertiseAddr, "POLICYBOT_WORKER_ADVERTISE_ADDR")
	envString(&cfg.Worker.GatewayURL, "POLICYBOT_GATEWAY_URL")
	envStrings(&cfg.Worker.Roles, "POLICYBOT_WORKER_ROLES")

	envDuration(&cfg.Membership.ProbeInterval, "POLICYBOT_PROBE_INTERVAL")
	envInt(&cfg.Membership.MaxFailures, "POLICYBOT_PROBE_MAX_FAILURES")
	envInt(&cfg.Membership.RemoveAfter, "POLICYBOT_PROBE_REMOVE_AFTER")
	envDuration(&cfg.Membership.ProbeTimeout, "POLICYBOT_PROBE_TIMEOUT")

	envString(&cfg.Qdrant.Endpoint, "POLICYBOT_QDRANT_ENDPOINT")
	envString(&cfg.Qdrant.Collection, "POLICYBOT_QDRANT_COLLECTION")
	envInt(&cfg.Qdrant.TopK, "POLICYBOT_TOP_K")
	envDuration(&cfg.Qdrant.Timeout, "POLICYBOT_QDRANT_TIMEOUT")

	envString(&cfg.Embedding.Endpoint, "POLICYBOT_EMBEDDING_ENDPOINT")
	envString(&cfg.Embedding.Model, "POLICYBOT_EMBEDDING_MODEL")
	envDuration(&cfg.Embedding.Timeout, "POLICYBOT_EMBEDDING_TIMEOUT")

	envString(&cfg.Generation.Endpoint, "POLICYBOT_GENERATION_ENDPOINT")
	envString(&cfg.Generation.Model, "POLICYBOT_GENERATION_MODEL")
	envFloat(&cfg.Generation.Temperature, "POLICYBOT_TEMPERATURE")
	envInt(&cfg.Generation.NumPredict, "POLICYBOT_NUM_PREDICT")
	envInt(&cfg.Generation.NumCtx, "POLICYBOT_NUM_CTX")
	envDuration(&cfg.Generation.Timeout, "POLICYBOT_GENERATION_TIMEOUT")

	envInt(&cfg.Retry.MaxAttempts, "POLICYBOT_RETRY_MAX_ATTEMPTS")
	envDuration(&cfg.Retry.InitialInterval, "POLICYBOT_RETRY_INITIAL_INTERVAL")
	envDuration(&cfg.Retry.MaxInterval, "POLICYBOT_RETRY_MAX_INTERVAL")

	envString(&cfg.Corpus.Dir, "POLICYBOT_CORPUS_DIR")
	envString(&cfg.Scraper.BaseURL, "POLICYBOT_SCRAPER_BASE_URL")
	envString(&cfg.Scraper.OutDir, "POLICYBOT_SCRAPER_OUT_DIR")

	return cfg
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envStrings(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

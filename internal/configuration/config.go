// Package configuration centralizes tunables for the gateway, worker nodes,
// and collaborator clients. Values come from defaults overridden by
// environment variables; cmd loads a .env file first so local setups stay
// declarative.
package configuration

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config aggregates every component's settings.
type Config struct {
	Gateway    GatewayConfig    `json:"gateway"`
	Worker     WorkerConfig     `json:"worker"`
	Membership MembershipConfig `json:"membership"`
	Qdrant     QdrantConfig     `json:"qdrant"`
	Embedding  EmbeddingConfig  `json:"embedding"`
	Generation GenerationConfig `json:"generation"`
	Retry      RetryConfig      `json:"retry"`
	Corpus     CorpusConfig     `json:"corpus"`
	Scraper    ScraperConfig    `json:"scraper"`
}

// GatewayConfig tunes the caller gateway and its coordinators.
type GatewayConfig struct {
	// Addr is the gateway's HTTP listen address (worker registration,
	// health, metrics).
	Addr string `json:"addr" validate:"required"`

	// GenerationDeadline bounds the wait for the generation stage. Long
	// enough to let a slow but successful generation finish, short enough
	// to bound user wait.
	GenerationDeadline time.Duration `json:"generation_deadline" validate:"gt=0"`

	// RetrievalDeadline bounds the wait for the retrieval stage,
	// symmetric with GenerationDeadline.
	RetrievalDeadline time.Duration `json:"retrieval_deadline" validate:"gt=0"`

	// PoolSize bounds the goroutines running blocking collaborator I/O.
	PoolSize int `json:"pool_size" validate:"gt=0"`
}

// WorkerConfig tunes a worker node.
type WorkerConfig struct {
	// Addr is the worker's HTTP listen address.
	Addr string `json:"addr" validate:"required"`

	// AdvertiseAddr is the address announced to the gateway; defaults to
	// Addr when empty.
	AdvertiseAddr string `json:"advertise_addr"`

	// GatewayURL is where the worker announces itself.
	GatewayURL string `json:"gateway_url" validate:"required"`

	// Roles the node offers. Roles whose collaborators fail the startup
	// probe are dropped, leaving the node in degraded mode.
	Roles []string `json:"roles" validate:"min=1"`
}

// MembershipConfig tunes the gateway-side heartbeat prober.
type MembershipConfig struct {
	ProbeInterval time.Duration `json:"probe_interval" validate:"gt=0"`
	MaxFailures   int           `json:"max_failures" validate:"gt=0"`
	RemoveAfter   int           `json:"remove_after" validate:"gt=0"`
	ProbeTimeout  time.Duration `json:"probe_timeout" validate:"gt=0"`
}

// QdrantConfig locates the vector store.
type QdrantConfig struct {
	Endpoint   string        `json:"endpoint" validate:"required,url"`
	Collection string        `json:"collection" validate:"required"`
	TopK       int           `json:"top_k" validate:"gt=0"`
	Timeout    time.Duration `json:"timeout" validate:"gt=0"`
}

// EmbeddingConfig locates the embedding collaborator.
type EmbeddingConfig struct {
	Endpoint string        `json:"endpoint" validate:"required,url"`
	Model    string        `json:"model" validate:"required"`
	Timeout  time.Duration `json:"timeout" validate:"gt=0"`
}

// GenerationConfig tunes the text-generation collaborator call.
type GenerationConfig struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	Model    string `json:"model" validate:"required"`

	Temperature   float64 `json:"temperature" validate:"gte=0,lte=2"`
	TopP          float64 `json:"top_p"`
	TopK          int     `json:"top_k"`
	NumPredict    int     `json:"num_predict" validate:"gt=0"`
	NumCtx        int     `json:"num_ctx" validate:"gt=0"`
	RepeatPenalty float64 `json:"repeat_penalty"`

	// Timeout bounds one collaborator request; the coordinator enforces
	// its own, longer deadline on top.
	Timeout time.Duration `json:"timeout" validate:"gt=0"`
}

// RetryConfig tunes the generation client's retry middleware.
type RetryConfig struct {
	MaxAttempts     int           `json:"max_attempts" validate:"gt=0"`
	InitialInterval time.Duration `json:"initial_interval" validate:"gt=0"`
	MaxInterval     time.Duration `json:"max_interval" validate:"gt=0"`
	Multiplier      float64       `json:"multiplier" validate:"gte=1"`
}

// CorpusConfig locates the scraped policy documents on disk.
type CorpusConfig struct {
	Dir string `json:"dir" validate:"required"`
}

// ScraperConfig tunes the policy catalog scraper.
type ScraperConfig struct {
	BaseURL string        `json:"base_url" validate:"required,url"`
	OutDir  string        `json:"out_dir" validate:"required"`
	Timeout time.Duration `json:"timeout" validate:"gt=0"`
}

// Validate checks the whole configuration tree.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

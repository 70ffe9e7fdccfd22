package bootstrap

import (
	"context"
	"log"
	"time"

	"devotion-guide-be/internal/config"
	"devotion-guide-be/internal/controller"
	"devotion-guide-be/internal/pkg/logger"
	"devotion-guide-be/internal/repository/unitofwork"
	"devotion-guide-be/internal/service"
	"devotion-guide-be/pkg/cache"
	"devotion-guide-be/pkg/embedding"
	"devotion-guide-be/pkg/events"
	"devotion-guide-be/pkg/guide/compress"
	"devotion-guide-be/pkg/guide/conversation"
	"devotion-guide-be/pkg/guide/fetcher"
	"devotion-guide-be/pkg/guide/metrics"
	"devotion-guide-be/pkg/guide/pipeline"
	"devotion-guide-be/pkg/guide/plan"
	"devotion-guide-be/pkg/guide/protocol"
	"devotion-guide-be/pkg/llm"
	"devotion-guide-be/pkg/llm/factory"

	pktNats "devotion-guide-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"gorm.io/gorm"
)

const (
	metricsNamespace   = "devotion"
	noteIndexerDurable = "note-indexer"
)

type Container struct {
	// Controllers
	GuideController        controller.IGuideController
	ConversationController controller.IConversationController
	DebugRunController     controller.IDebugRunController

	// Used directly by the debugrun CLI
	DebugRunService service.IDebugRunService

	// Background services, started by main.go
	ConsumerService    service.IConsumerService
	NoteIndexerService service.INoteIndexerService
	NatsSubscriber     *pktNats.Subscriber

	Metrics *metrics.Collector
	Logger  logger.ILogger

	natsConn *nats.Conn
	redis    *redis.Client
	pubSub   *gochannel.GoChannel
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	repos := uowFactory.NewUnitOfWork(context.Background())
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	llmLogger := logger.NewIsolatedLogger(cfg.App.LLMLogFilePath)
	collector := metrics.NewCollector(metricsNamespace)

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)

	// 3. Infrastructure
	// NATS
	var eventPublisher events.Publisher = events.NopPublisher{}
	var natsSub *pktNats.Subscriber
	nc, js, err := pktNats.Connect(context.Background(), cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] NATS unavailable, cross-service events disabled: %v", err)
	} else {
		eventPublisher = pktNats.NewPublisher(js)
		natsSub = pktNats.NewSubscriber(js, sysLogger)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb := redis.NewClient(opt)
	var shared cache.Store
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis, using process cache only: %v", err)
	} else {
		shared = cache.NewRedisStore(rdb, "guide:")
	}
	lifeContextCache := cache.NewTieredStore(
		cache.NewMemoryStore(cfg.Guide.LifeContextCacheTTL, 2*cfg.Guide.LifeContextCacheTTL),
		shared,
		time.Minute,
		sysLogger,
	)

	// 4. Model Providers
	guideModel, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.GuideModel, baseURL(cfg), cfg.Ai.OpenAIKey)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.GuideModel)

	breakerCfg := llm.DefaultBreakerConfig("guide-llm")
	breakerCfg.FailureThreshold = cfg.Guide.BreakerFailureRatio
	breakerCfg.MinRequests = cfg.Guide.BreakerMinRequests
	breakerCfg.Timeout = cfg.Guide.BreakerOpenTimeout
	breakerCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		collector.BreakerState(name, float64(to))
		sysLogger.Warn("LLM", "Circuit breaker state changed", map[string]interface{}{
			"breaker": name,
			"from":    from.String(),
			"to":      to.String(),
		})
	}
	guarded := llm.NewBreakerProvider(guideModel, breakerCfg)

	var embedder embedding.EmbeddingProvider
	embeddingModel := cfg.Ai.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = embedding.DefaultModel(cfg.Ai.EmbeddingProvider)
	}
	if cfg.Ai.EmbeddingProvider != "none" {
		apiKey := ""
		if cfg.Ai.EmbeddingProvider == "gemini" {
			apiKey = cfg.Ai.GeminiKey
		}
		embedder, err = embedding.NewProvider(cfg.Ai.EmbeddingProvider, cfg.Ai.OllamaBaseURL, embeddingModel, apiKey)
		if err != nil {
			log.Printf("[WARN] Semantic note retrieval disabled: %v", err)
			embedder = nil
		}
	}

	// 5. Guide Pipeline
	fetchers := []fetcher.Fetcher{
		fetcher.NewLifeContextFetcher(repos.LifeContextRepository(), lifeContextCache, cfg.Guide.LifeContextCacheTTL, collector),
		fetcher.NewReadingSessionFetcher(repos.ReadingSessionRepository()),
		fetcher.NewHighlightFetcher(repos.VerseHighlightRepository()),
		fetcher.NewNoteFetcher(repos.NoteRepository()),
		fetcher.NewConversationSummaryFetcher(repos.ConversationStateRepository()),
	}
	if embedder != nil {
		fetchers = append(fetchers, fetcher.NewSemanticNoteFetcher(
			embedder,
			embeddingModel,
			repos.NoteEmbeddingRepository(),
			repos.NoteRepository(),
			cfg.Guide.SemanticThreshold,
		))
	}

	conversations := conversation.NewManager(
		repos.ConversationStateRepository(),
		conversation.NewModelSummarizer(guarded, cfg.Ai.SummaryModel, 0),
		cfg.Guide.ConversationWindow,
		sysLogger,
	)

	defaultRange := plan.TimeRange(cfg.Guide.DefaultRange)
	if !defaultRange.Valid() {
		log.Printf("[WARN] Unknown GUIDE_DEFAULT_RANGE %q, using %s", cfg.Guide.DefaultRange, plan.RangeLastMonth)
		defaultRange = plan.RangeLastMonth
	}

	runner := protocol.NewRunner(guarded, nil, llmLogger, collector)
	stages := pipeline.NewStages(pipeline.StagesConfig{
		Fetchers:      fetchers,
		Compressor:    compress.NewCompressor(cfg.Guide.PayloadMaxChars, cfg.Guide.PreviewMaxRunes),
		Conversations: conversations,
		Profiles:      repos.UserProfileRepository(),
		Runner:        runner,
		Logger:        sysLogger,
		Metrics:       collector,
		FetchLimit:    cfg.Guide.FetchLimit,
		DefaultRange:  defaultRange,
		ModelOptions:  []llm.Option{llm.WithTemperature(cfg.Ai.Temperature)},
	})
	orchestrator := pipeline.NewOrchestrator(
		stages,
		repos.DebugRunRepository(),
		repos.PipelineArtifactRepository(),
		sysLogger,
		collector,
	)

	// 6. Services
	publisherService := service.NewPublisherService(cfg.Telemetry.SessionTopic, pubSub)
	consumerService := service.NewConsumerService(pubSub, cfg.Telemetry.SessionTopic, uowFactory, eventPublisher, sysLogger)

	guideService := service.NewGuideService(
		stages,
		runner,
		conversations,
		publisherService,
		sysLogger,
		collector,
		cfg.Guide.DefaultEnabledAction,
	)
	conversationService := service.NewConversationService(conversations)
	debugRunService := service.NewDebugRunService(orchestrator, eventPublisher, sysLogger)

	var noteIndexer service.INoteIndexerService
	if embedder != nil {
		noteIndexer = service.NewNoteIndexerService(uowFactory, embedder, embeddingModel, sysLogger)
	}

	// 7. Controllers
	return &Container{
		GuideController:        controller.NewGuideController(guideService, sysLogger),
		ConversationController: controller.NewConversationController(conversationService),
		DebugRunController:     controller.NewDebugRunController(debugRunService),

		DebugRunService: debugRunService,

		ConsumerService:    consumerService,
		NoteIndexerService: noteIndexer,
		NatsSubscriber:     natsSub,

		Metrics: collector,
		Logger:  sysLogger,

		natsConn: nc,
		redis:    rdb,
		pubSub:   pubSub,
	}
}

// StartBackground launches the telemetry consumer and, when both NATS and
// an embedding backend are available, the note indexer.
func (c *Container) StartBackground(ctx context.Context) error {
	if err := c.ConsumerService.Consume(ctx); err != nil {
		return err
	}
	if c.NatsSubscriber == nil || c.NoteIndexerService == nil {
		c.Logger.Warn("BOOTSTRAP", "Note indexer not started", map[string]interface{}{
			"nats":      c.NatsSubscriber != nil,
			"embedding": c.NoteIndexerService != nil,
		})
		return nil
	}
	return c.NatsSubscriber.Subscribe(ctx, pktNats.Subject(events.TypeNoteSaved), noteIndexerDurable, c.NoteIndexerService.HandleNoteSaved)
}

// Close releases broker and cache connections.
func (c *Container) Close() {
	if c.NatsSubscriber != nil {
		c.NatsSubscriber.Stop()
	}
	if c.natsConn != nil {
		if err := c.natsConn.Drain(); err != nil {
			log.Printf("[WARN] NATS drain failed: %v", err)
		}
	}
	if err := c.pubSub.Close(); err != nil {
		log.Printf("[WARN] Event bus close failed: %v", err)
	}
	if err := c.redis.Close(); err != nil {
		log.Printf("[WARN] Redis close failed: %v", err)
	}
	_ = c.Logger.Sync()
}

func baseURL(cfg *config.Config) string {
	if cfg.Ai.LLMProvider == "openai" {
		return cfg.Ai.OpenAIBaseURL
	}
	return cfg.Ai.OllamaBaseURL
}

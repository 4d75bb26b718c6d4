package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/go-recommender/internal/cfg"
	v1Http "github.com/DRSN-tech/go-recommender/internal/delivery/v1/http"
	"github.com/DRSN-tech/go-recommender/internal/infrastructure/fetcher"
	"github.com/DRSN-tech/go-recommender/internal/infrastructure/hashing"
	"github.com/DRSN-tech/go-recommender/internal/infrastructure/kafka"
	minioInfra "github.com/DRSN-tech/go-recommender/internal/infrastructure/minio"
	ml_service "github.com/DRSN-tech/go-recommender/internal/infrastructure/ml-service"
	"github.com/DRSN-tech/go-recommender/internal/infrastructure/openai"
	"github.com/DRSN-tech/go-recommender/internal/infrastructure/resilience"
	"github.com/DRSN-tech/go-recommender/internal/observability"
	"github.com/DRSN-tech/go-recommender/internal/repository/memory"
	s3Repo "github.com/DRSN-tech/go-recommender/internal/repository/minio"
	"github.com/DRSN-tech/go-recommender/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/go-recommender/internal/repository/pgdb/converter"
	qdrantRepo "github.com/DRSN-tech/go-recommender/internal/repository/qdrant"
	"github.com/DRSN-tech/go-recommender/internal/repository/redis"
	redisConv "github.com/DRSN-tech/go-recommender/internal/repository/redis/converter"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/clients"
	"github.com/DRSN-tech/go-recommender/pkg/closer"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/DRSN-tech/go-recommender/pkg/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	initTimeout     = 10 * time.Second
	shutdownTimeout = 15 * time.Second
	cleanupWait     = 5 * time.Second
)

// App связывает конфигурацию, адаптеры, use case'ы и HTTP-сервер.
type App struct {
	cfg    *config.Config
	logger logger.Logger
	closer *closer.Closer

	httpSrv     *v1Http.Server
	imagesInfra *minioInfra.MinioInfrastructure // nil, если MinIO не настроен

	// backgroundCtx отменяется при остановке и прерывает фоновую очистку изображений
	backgroundCtx    context.Context
	backgroundCancel context.CancelFunc
}

// NewApp создаёт все зависимости. При ошибке уже открытые ресурсы закрываются.
func NewApp(cfg *config.Config, log logger.Logger) (_ *App, err error) {
	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	app := &App{
		cfg:              cfg,
		logger:           log,
		closer:           closer.NewCloser(0),
		backgroundCtx:    backgroundCtx,
		backgroundCancel: backgroundCancel,
	}
	defer func() {
		if err != nil {
			backgroundCancel()
			_ = app.closer.Close(context.Background())
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	tracer, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	app.closer.Add("tracing", tracer.Shutdown)

	indexStore, err := app.initIndex(ctx)
	if err != nil {
		return nil, err
	}

	vectorizer, err := app.initVectorizer()
	if err != nil {
		return nil, err
	}

	publisher, err := app.initPublisher()
	if err != nil {
		return nil, err
	}

	confirmations, err := app.initConfirmations(ctx)
	if err != nil {
		return nil, err
	}

	journal, err := app.initJournal(ctx)
	if err != nil {
		return nil, err
	}

	imagesInfra, err := app.initImages(ctx)
	if err != nil {
		return nil, err
	}

	dimension := cfg.Vectorizer.Dimension
	ingestionUC := usecase.NewIngestionUC(indexStore, vectorizer, publisher, confirmations, imagesInfra, cfg.Ingest, dimension, log)
	recommendationUC := usecase.NewRecommendationUC(indexStore, vectorizer, cfg.Recommend, dimension, log)
	extractionUC := usecase.NewExtractionUC(app.initExtractor(), ingestionUC, imagesInfra, journal, fetcher.NewFetcher(cfg.Fetch, log), cfg.Extraction, log)

	r := chi.NewRouter()
	v1Http.NewRouter(r, log).Init(ingestionUC, recommendationUC, extractionUC, v1Http.Limits{
		MaxBodyBytes:    cfg.Http.MaxBodyBytes,
		MaxImageBytes:   cfg.Extraction.MaxImageBytes,
		MaxArchiveBytes: cfg.Extraction.MaxArchiveBytes,
	})
	app.httpSrv = v1Http.NewServer(r, cfg.Http)

	return app, nil
}

// Run запускает HTTP-сервер и блокируется до сигнала остановки или фатальной ошибки.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	a.stop()

	a.logger.Infof("Application shutdown complete")
	return appErr
}

func (a *App) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.httpSrv.Stop(ctx); err != nil {
		a.logger.Errorf(err, "HTTP server shutdown error")
	} else {
		a.logger.Infof("HTTP server stopped")
	}

	if a.imagesInfra != nil {
		waitCtx, waitCancel := context.WithTimeout(ctx, cleanupWait)
		if err := a.imagesInfra.WaitForCleanup(waitCtx); err != nil {
			a.logger.Warnf("MinIO cleanup did not finish before shutdown, some objects may remain: %v", err)
		} else {
			a.logger.Infof("MinIO cleanup completed")
		}
		waitCancel()
	}
	a.backgroundCancel()

	if err := a.closer.Close(ctx); err != nil {
		a.logger.Errorf(err, "failed to close resources")
	}
}

func (a *App) initIndex(ctx context.Context) (usecase.IndexStore, error) {
	if a.cfg.Index.Provider == config.IndexProviderMemory {
		a.logger.Warnf("using in-memory index: products are lost on restart")
		return memory.NewIndexRepo(a.cfg.Vectorizer.Dimension), nil
	}

	qdrantClient, err := clients.NewQdrantClient(a.cfg.Qdrant)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("qdrant", func(context.Context) error { return qdrantClient.Close() })

	if err := qdrantClient.EnsureCollection(ctx); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	a.logger.Infof("qdrant collection %s ready", a.cfg.Qdrant.QdrantCollectionName)
	return qdrantRepo.NewIndexRepo(qdrantClient.Client, a.cfg.Qdrant), nil
}

func (a *App) initVectorizer() (usecase.Vectorizer, error) {
	var next usecase.Vectorizer

	switch a.cfg.Vectorizer.Provider {
	case config.VectorizerProviderHashing:
		next = hashing.NewVectorizer(a.cfg.Vectorizer.Dimension)
	case config.VectorizerProviderOpenAI:
		if a.cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY is required for the openai vectorizer", e.ErrIncorrectEnvVariable)
		}
		client := openai.NewClient(a.cfg.OpenAI, a.logger)
		next = openai.NewEmbedder(client, a.cfg.OpenAI.EmbeddingModel, a.cfg.Vectorizer.Dimension)
	default:
		conn, err := grpc.NewClient(
			a.cfg.Ml.Addr,
			grpc.WithTransportCredentials(insecure.NewCredentials()), // без TLS
		)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		a.closer.Add("ml-service", func(context.Context) error { return conn.Close() })
		next = ml_service.NewMLService(conn, a.cfg.Ml.Model, a.cfg.Ml.MaxRetries, a.cfg.Ml.Timeout, a.logger)
	}

	a.logger.Infof("vectorizer: %s, dimension %d", a.cfg.Vectorizer.Provider, a.cfg.Vectorizer.Dimension)
	return resilience.NewGuardedVectorizer(next, a.cfg.Breaker, a.logger), nil
}

func (a *App) initExtractor() usecase.Extractor {
	if a.cfg.OpenAI.APIKey == "" {
		a.logger.Warnf("OPENAI_API_KEY is not set: image extraction requests will fail")
	}

	client := openai.NewClient(a.cfg.OpenAI, a.logger)
	extractor := openai.NewExtractor(client, a.cfg.OpenAI.ChatModel, a.cfg.OpenAI.MaxTokens)
	return resilience.NewGuardedExtractor(extractor, a.cfg.Extraction, a.cfg.Breaker, a.logger)
}

func (a *App) initPublisher() (usecase.EventPublisher, error) {
	if a.cfg.Kafka == nil {
		a.logger.Infof("kafka is not configured: product events are not published")
		return nil, nil
	}

	producer, err := kafka.NewProducer(a.logger, a.cfg.Kafka)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("kafka", func(context.Context) error { return producer.Close() })

	if err := producer.EnsureTopic(initTimeout); err != nil {
		// события best-effort: недоступность брокера на старте не фатальна
		a.logger.Warnf("failed to ensure kafka topic %s: %v", a.cfg.Kafka.Topic, err)
	}

	return producer, nil
}

func (a *App) initConfirmations(ctx context.Context) (usecase.ConfirmationRepository, error) {
	if a.cfg.Redis == nil {
		a.logger.Infof("redis is not configured: delete-all is confirmed by flag only")
		return nil, nil
	}

	redisClient := clients.NewRedisClient(a.cfg.Redis)
	a.closer.Add("redis", func(context.Context) error { return redisClient.Close() })

	if err := redisClient.Ping(ctx); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return redis.NewConfirmationRepo(redisClient, redisConv.NewTokenConverter(), a.cfg.Redis, a.logger), nil
}

func (a *App) initJournal(ctx context.Context) (usecase.RunJournalRepository, error) {
	if a.cfg.Db == nil {
		a.logger.Infof("postgres is not configured: extraction runs are not journaled")
		return nil, nil
	}

	db, err := postgres.Connect(ctx, a.cfg.Db)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.AddFunc("postgres", db.Close)

	if err := db.RunMigrations(a.logger); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return pgdb.NewRunJournalRepo(db.Pool, pgdbConv.NewRunConverter()), nil
}

func (a *App) initImages(ctx context.Context) (usecase.ImagesInfra, error) {
	if a.cfg.Minio == nil {
		a.logger.Infof("minio is not configured: archive images are not stored")
		return nil, nil
	}

	minioClient, err := clients.NewMinIOClient(a.cfg.Minio)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := clients.EnsureBucket(ctx, minioClient, a.cfg.Minio.BucketName); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	imageRepo := s3Repo.NewImageRepo(minioClient, a.cfg.Minio.BucketName)
	a.imagesInfra = minioInfra.NewMinioInfrastructure(imageRepo, a.cfg.Minio, a.logger, a.backgroundCtx)
	return a.imagesInfra, nil
}

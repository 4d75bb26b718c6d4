package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/jimlawless/whereami"
	"github.com/joho/godotenv"
)

// Провайдеры индекса
const (
	IndexProviderQdrant = "qdrant"
	IndexProviderMemory = "memory"
)

// Провайдеры векторизации
const (
	VectorizerProviderML      = "ml"
	VectorizerProviderOpenAI  = "openai"
	VectorizerProviderHashing = "hashing"
)

type Config struct {
	Http       *HTTPConfig
	Index      *IndexCfg
	Qdrant     *QdrantCfg
	Vectorizer *VectorizerCfg
	Ml         *MLServiceCfg
	OpenAI     *OpenAICfg
	Ingest     *IngestCfg
	Recommend  *RecommendCfg
	Extraction *ExtractionCfg
	Fetch      *FetchCfg
	Breaker    *BreakerCfg
	Minio      *MinIOCfg // nil, если MinIO не настроен
	Redis      *RedisCfg // nil, если Redis не настроен
	Db         *PGDBCfg  // nil, если PostgreSQL не настроен
	Kafka      *KafkaCfg // nil, если Kafka не настроена
	Tracing    *TracingCfg
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodyBytes int64
}

type IndexCfg struct {
	Provider string
}

type QdrantCfg struct {
	Port                 int
	Host                 string
	ApiKey               string
	QdrantCollectionName string // имя коллекции в Qdrant
	UseTLS               bool
	VectorSize           uint64
}

type VectorizerCfg struct {
	Provider     string
	Dimension    int
	ModelVersion string
}

type MLServiceCfg struct {
	Addr       string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

type OpenAICfg struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Timeout        time.Duration
	MaxRetries     int
	MaxTokens      int
}

type IngestCfg struct {
	MaxConcurrent int
}

type RecommendCfg struct {
	DefaultK int
	MaxK     int
}

type ExtractionCfg struct {
	MaxConcurrent     int
	UnitTimeout       time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxArchiveBytes   int64
	MaxEntries        int
	MaxImageBytes     int64
	MaxImagesPerUnit  int
	IngestTimeout     time.Duration
}

// FetchCfg - загрузка изображений по URL. Пустой AllowedHosts разрешает любой хост.
type FetchCfg struct {
	Timeout      time.Duration
	MaxRetries   int
	AllowedHosts []string
}

type BreakerCfg struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

type MinIOCfg struct {
	MinioEndpoint     string // Адрес конечной точки Minio
	BucketName        string // Название бакета для изображений из архивов
	MinioRootUser     string
	MinioRootPassword string
	MinioUseSSL       bool
	UploadImagesLimit int // Лимит на число одновременных загрузок в S3
}

type RedisCfg struct {
	Addr            string
	Password        string
	User            string
	DB              int
	MaxRetries      int
	DialTimeout     time.Duration
	Timeout         time.Duration
	ConfirmationTTL time.Duration
}

type PGDBCfg struct {
	Host          string
	Port          string
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MigrationsURL string // источник миграций golang-migrate, например file://db/migrations
}

type KafkaCfg struct {
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

type TracingCfg struct {
	ServiceName  string
	OTLPEndpoint string
	SampleRate   float64
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
// Переменные из файла .env (если он есть) не перекрывают уже заданное окружение.
func Load(log logger.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("failed to read .env file: %v", err)
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	index, err := loadIndexCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	vectorizer, err := loadVectorizerCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log, vectorizer.Dimension)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ml, err := loadMLServiceCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	openAI, err := loadOpenAICfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ingest, err := loadIngestCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	recommend, err := loadRecommendCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	extraction, err := loadExtractionCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	fetch, err := loadFetchCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	breaker, err := loadBreakerCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	tracing, err := loadTracingCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Http:       http,
		Index:      index,
		Qdrant:     qdrant,
		Vectorizer: vectorizer,
		Ml:         ml,
		OpenAI:     openAI,
		Ingest:     ingest,
		Recommend:  recommend,
		Extraction: extraction,
		Fetch:      fetch,
		Breaker:    breaker,
		Minio:      minio,
		Redis:      redis,
		Db:         db,
		Kafka:      kafka,
		Tracing:    tracing,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 30 * time.Second
		defaultWriteTimeout = 5 * time.Minute
		defaultIdleTimeout  = 60 * time.Second
		defaultMaxBodyBytes = 256 << 20
	)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	// Обработка архива включает внешние вызовы, поэтому таймаут записи заметно больше таймаута чтения
	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	maxBody, err := parseInt64Env("HTTP_MAX_BODY_BYTES", defaultMaxBodyBytes)
	if err != nil {
		return nil, e.Wrap("HTTP_MAX_BODY_BYTES", err)
	}

	return &HTTPConfig{
		Port:         getEnvOrDefault("HTTP_PORT", defaultPort),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		MaxBodyBytes: maxBody,
	}, nil
}

func loadIndexCfg() (*IndexCfg, error) {
	provider := strings.ToLower(getEnvOrDefault("INDEX_PROVIDER", IndexProviderQdrant))
	switch provider {
	case IndexProviderQdrant, IndexProviderMemory:
	default:
		return nil, fmt.Errorf("%w: INDEX_PROVIDER=%q", e.ErrIncorrectEnvVariable, provider)
	}

	return &IndexCfg{Provider: provider}, nil
}

func loadVectorizerCfg(log logger.Logger) (*VectorizerCfg, error) {
	const (
		defaultDimension    = 384
		defaultModelVersion = "all-MiniLM-L6-v2"
	)

	provider := strings.ToLower(getEnvOrDefault("VECTORIZER_PROVIDER", VectorizerProviderML))
	switch provider {
	case VectorizerProviderML, VectorizerProviderOpenAI, VectorizerProviderHashing:
	default:
		return nil, fmt.Errorf("%w: VECTORIZER_PROVIDER=%q", e.ErrIncorrectEnvVariable, provider)
	}

	dimension, err := parseIntEnv("VECTOR_SIZE", defaultDimension)
	if err != nil {
		log.Errorf(err, "invalid VECTOR_SIZE")
		return nil, err
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: VECTOR_SIZE must be positive", e.ErrIncorrectEnvVariable)
	}

	return &VectorizerCfg{
		Provider:     provider,
		Dimension:    dimension,
		ModelVersion: getEnvOrDefault("EMBEDDING_MODEL_VERSION", defaultModelVersion),
	}, nil
}

func loadQdrantCfg(logger logger.Logger, dimension int) (*QdrantCfg, error) {
	const (
		defaultHost           = "localhost"
		defaultQdrantGRPCPort = 6334
		defaultCollection     = "products"
	)

	port, err := parseIntEnv("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := parseBoolEnv("QDRANT_USE_TLS", false)
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	return &QdrantCfg{
		Host:                 getEnvOrDefault("QDRANT_HOST", defaultHost),
		Port:                 port,
		ApiKey:               getEnv("QDRANT__SERVICE__API_KEY"),
		QdrantCollectionName: getEnvOrDefault("COLLECTION_NAME", defaultCollection),
		UseTLS:               useTLS,
		VectorSize:           uint64(dimension),
	}, nil
}

func loadMLServiceCfg(log logger.Logger) (*MLServiceCfg, error) {
	const (
		defaultHost       = "ml-service"
		defaultPort       = "50051"
		defaultMaxRetries = 3
		defaultTimeout    = 10 * time.Second
	)

	maxRetries, err := parseIntEnv("ML_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		return nil, e.Wrap("ML_MAX_RETRIES", err)
	}

	timeout, err := parseDurationEnv("ML_TIMEOUT", defaultTimeout)
	if err != nil {
		log.Errorf(err, "invalid ML_TIMEOUT")
		return nil, err
	}

	host := getEnvOrDefault("ML_HOST", defaultHost)
	port := getEnvOrDefault("ML_PORT", defaultPort)

	return &MLServiceCfg{
		Addr:       host + ":" + port,
		Model:      getEnv("ML_EMBEDDING_MODEL"),
		MaxRetries: max(maxRetries, 1),
		Timeout:    timeout,
	}, nil
}

func loadOpenAICfg(log logger.Logger) (*OpenAICfg, error) {
	const (
		defaultBaseURL        = "https://api.openai.com/v1"
		defaultChatModel      = "gpt-4o-mini"
		defaultEmbeddingModel = "text-embedding-3-small"
		defaultTimeout        = 60 * time.Second
		defaultMaxRetries     = 3
		defaultMaxTokens      = 1000
	)

	timeout, err := parseDurationEnv("OPENAI_TIMEOUT", defaultTimeout)
	if err != nil {
		log.Errorf(err, "invalid OPENAI_TIMEOUT")
		return nil, err
	}

	maxRetries, err := parseIntEnv("OPENAI_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		return nil, e.Wrap("OPENAI_MAX_RETRIES", err)
	}

	maxTokens, err := parseIntEnv("OPENAI_MAX_TOKENS", defaultMaxTokens)
	if err != nil {
		return nil, e.Wrap("OPENAI_MAX_TOKENS", err)
	}

	return &OpenAICfg{
		APIKey:         getEnv("OPENAI_API_KEY"),
		BaseURL:        strings.TrimRight(getEnvOrDefault("OPENAI_BASE_URL", defaultBaseURL), "/"),
		ChatModel:      getEnvOrDefault("OPENAI_CHAT_MODEL", defaultChatModel),
		EmbeddingModel: getEnvOrDefault("OPENAI_EMBEDDING_MODEL", defaultEmbeddingModel),
		Timeout:        timeout,
		MaxRetries:     max(maxRetries, 1),
		MaxTokens:      maxTokens,
	}, nil
}

func loadIngestCfg() (*IngestCfg, error) {
	const defaultMaxConcurrent = 8

	maxConcurrent, err := parseIntEnv("INGEST_MAX_CONCURRENT", defaultMaxConcurrent)
	if err != nil {
		return nil, e.Wrap("INGEST_MAX_CONCURRENT", err)
	}

	return &IngestCfg{MaxConcurrent: max(maxConcurrent, 1)}, nil
}

func loadRecommendCfg() (*RecommendCfg, error) {
	const (
		defaultK    = 5
		defaultMaxK = 50
	)

	k, err := parseIntEnv("RECOMMEND_DEFAULT_K", defaultK)
	if err != nil {
		return nil, e.Wrap("RECOMMEND_DEFAULT_K", err)
	}

	maxK, err := parseIntEnv("RECOMMEND_MAX_K", defaultMaxK)
	if err != nil {
		return nil, e.Wrap("RECOMMEND_MAX_K", err)
	}

	if k <= 0 || maxK <= 0 || k > maxK {
		return nil, fmt.Errorf("%w: RECOMMEND_DEFAULT_K=%d RECOMMEND_MAX_K=%d", e.ErrIncorrectEnvVariable, k, maxK)
	}

	return &RecommendCfg{DefaultK: k, MaxK: maxK}, nil
}

func loadExtractionCfg(log logger.Logger) (*ExtractionCfg, error) {
	const (
		defaultMaxConcurrent     = 4
		defaultUnitTimeout       = 90 * time.Second
		defaultRequestsPerSecond = 5
		defaultBurst             = 5
		defaultMaxArchiveBytes   = 200 << 20
		defaultMaxEntries        = 5000
		defaultMaxImageBytes     = 20 << 20
		defaultMaxImagesPerUnit  = 10
		defaultIngestTimeout     = 2 * time.Minute
	)

	maxConcurrent, err := parseIntEnv("EXTRACTION_MAX_CONCURRENT", defaultMaxConcurrent)
	if err != nil {
		return nil, e.Wrap("EXTRACTION_MAX_CONCURRENT", err)
	}

	unitTimeout, err := parseDurationEnv("EXTRACTION_UNIT_TIMEOUT", defaultUnitTimeout)
	if err != nil {
		log.Errorf(err, "invalid EXTRACTION_UNIT_TIMEOUT")
		return nil, err
	}

	rps, err := parseFloatEnv("EXTRACTION_RPS", defaultRequestsPerSecond)
	if err != nil {
		return nil, e.Wrap("EXTRACTION_RPS", err)
	}

	burst, err := parseIntEnv("EXTRACTION_BURST", defaultBurst)
	if err != nil {
		return nil, e.Wrap("EXTRACTION_BURST", err)
	}

	maxArchive, err := parseInt64Env("EXTRACTION_MAX_ARCHIVE_BYTES", defaultMaxArchiveBytes)
	if err != nil {
		return nil, e.Wrap("EXTRACTION_MAX_ARCHIVE_BYTES", err)
	}

	maxEntries, err := parseIntEnv("EXTRACTION_MAX_ENTRIES", defaultMaxEntries)
	if err != nil {
		return nil, e.Wrap("EXTRACTION_MAX_ENTRIES", err)
	}

	maxImage, err := parseInt64Env("EXTRACTION_MAX_IMAGE_BYTES", defaultMaxImageBytes)
	if err != nil {
		return nil, e.Wrap("EXTRACTION_MAX_IMAGE_BYTES", err)
	}

	maxImages, err := parseIntEnv("EXTRACTION_MAX_IMAGES_PER_UNIT", defaultMaxImagesPerUnit)
	if err != nil {
		return nil, e.Wrap("EXTRACTION_MAX_IMAGES_PER_UNIT", err)
	}

	ingestTimeout, err := parseDurationEnv("EXTRACTION_INGEST_TIMEOUT", defaultIngestTimeout)
	if err != nil {
		log.Errorf(err, "invalid EXTRACTION_INGEST_TIMEOUT")
		return nil, err
	}

	return &ExtractionCfg{
		MaxConcurrent:     max(maxConcurrent, 1),
		UnitTimeout:       unitTimeout,
		RequestsPerSecond: rps,
		Burst:             max(burst, 1),
		MaxArchiveBytes:   maxArchive,
		MaxEntries:        maxEntries,
		MaxImageBytes:     maxImage,
		MaxImagesPerUnit:  maxImages,
		IngestTimeout:     ingestTimeout,
	}, nil
}

func loadFetchCfg() (*FetchCfg, error) {
	const (
		defaultTimeout    = 30 * time.Second
		defaultMaxRetries = 3
	)

	timeout, err := parseDurationEnv("FETCH_TIMEOUT", defaultTimeout)
	if err != nil {
		return nil, e.Wrap("FETCH_TIMEOUT", err)
	}

	retries, err := parseIntEnv("FETCH_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		return nil, e.Wrap("FETCH_MAX_RETRIES", err)
	}

	hosts := make([]string, 0)
	for _, h := range strings.Split(getEnv("FETCH_ALLOWED_HOSTS"), ",") {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}

	return &FetchCfg{
		Timeout:      timeout,
		MaxRetries:   max(retries, 1),
		AllowedHosts: hosts,
	}, nil
}

func loadBreakerCfg() (*BreakerCfg, error) {
	const (
		defaultMaxFailures = 5
		defaultOpenTimeout = 30 * time.Second
	)

	failures, err := parseIntEnv("BREAKER_MAX_FAILURES", defaultMaxFailures)
	if err != nil {
		return nil, e.Wrap("BREAKER_MAX_FAILURES", err)
	}

	openTimeout, err := parseDurationEnv("BREAKER_OPEN_TIMEOUT", defaultOpenTimeout)
	if err != nil {
		return nil, e.Wrap("BREAKER_OPEN_TIMEOUT", err)
	}

	return &BreakerCfg{
		MaxFailures: uint32(max(failures, 1)),
		OpenTimeout: openTimeout,
	}, nil
}

// loadMinIOCfg возвращает nil, если BUCKET_NAME не задан: архивирование изображений выключено.
func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultEndpoint          = "minio:9000"
		defaultUploadImagesLimit = 10
	)

	bucket := getEnv("BUCKET_NAME")
	if bucket == "" {
		return nil, nil
	}

	useSSL, err := parseBoolEnv("MINIO_USE_SSL", false)
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	limit, err := parseIntEnv("MINIO_UPLOAD_LIMIT", defaultUploadImagesLimit)
	if err != nil {
		return nil, e.Wrap("MINIO_UPLOAD_LIMIT", err)
	}

	return &MinIOCfg{
		MinioEndpoint:     getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		BucketName:        bucket,
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		UploadImagesLimit: max(limit, 1),
	}, nil
}

// loadRedisCfg возвращает nil, если REDIS_ADDR не задан: токены подтверждения delete-all не используются.
func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultDB              = 0
		defaultMaxRetries      = 3
		defaultDialTimeout     = 5 * time.Second
		defaultReadTimeout     = 3 * time.Second
		defaultWriteTimeout    = 3 * time.Second
		defaultConfirmationTTL = 2 * time.Minute
	)

	addr := getEnv("REDIS_ADDR")
	if addr == "" {
		return nil, nil
	}

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("REDIS_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid REDIS_MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("REDIS_DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("REDIS_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("REDIS_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_WRITE_TIMEOUT")
		return nil, err
	}

	ttl, err := parseDurationEnv("DELETE_ALL_CONFIRMATION_TTL", defaultConfirmationTTL)
	if err != nil {
		log.Errorf(err, "invalid DELETE_ALL_CONFIRMATION_TTL")
		return nil, err
	}

	return &RedisCfg{
		Addr:            addr,
		Password:        getEnv("REDIS_PASSWORD"),
		User:            getEnv("REDIS_USER"),
		DB:              db,
		MaxRetries:      maxRetries,
		DialTimeout:     dialTimeout,
		Timeout:         max(readTimeout, writeTimeout),
		ConfirmationTTL: ttl,
	}, nil
}

// loadPGDBCfg возвращает nil, если POSTGRES_DB не задан: журнал запусков извлечения не ведётся.
// Если база задана, пользователь и пароль обязательны.
func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost       = "localhost"
		defaultPort       = "5432"
		defaultSSLMode    = "disable"
		defaultMigrations = "file://db/migrations"
	)

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		return nil, nil
	}

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := fmt.Errorf("POSTGRES_USER is required")
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := fmt.Errorf("POSTGRES_PASSWORD is required")
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	return &PGDBCfg{
		Host:          getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:          getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:          user,
		Password:      password,
		DBName:        dbName,
		SSLMode:       getEnvOrDefault("SSL_MODE", defaultSSLMode),
		MigrationsURL: getEnvOrDefault("POSTGRES_MIGRATIONS_URL", defaultMigrations),
	}, nil
}

// loadKafkaCfg возвращает nil, если KAFKA_BROKERS не задан: события изменений не публикуются.
func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultTopic             = "product-changes"
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
	)

	brokerStr := getEnv("KAFKA_BROKERS")
	if brokerStr == "" {
		return nil, nil
	}

	brokers := make([]string, 0)
	for _, b := range strings.Split(brokerStr, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("%w: KAFKA_BROKERS=%q", e.ErrIncorrectEnvVariable, brokerStr)
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Brokers:           brokers,
		Topic:             getEnvOrDefault("KAFKA_TOPIC", defaultTopic),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

func loadTracingCfg() (*TracingCfg, error) {
	const (
		defaultServiceName = "go-recommender"
		defaultSampleRate  = 1.0
	)

	rate, err := parseFloatEnv("OTEL_SAMPLE_RATE", defaultSampleRate)
	if err != nil {
		return nil, e.Wrap("OTEL_SAMPLE_RATE", err)
	}

	return &TracingCfg{
		ServiceName:  getEnvOrDefault("OTEL_SERVICE_NAME", defaultServiceName),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SampleRate:   rate,
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}

func parseInt64Env(key string, defaultValue int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return f, nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	return strconv.ParseBool(v)
}

package config

import (
	"os"

	godotenv "github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mahirjain10/object-pipeline/pkg/logger"
)

const (
	QueueBackendSQS      = "sqs"
	QueueBackendRabbitMQ = "rabbitmq"
)

type Config struct {
	ServiceName string
	LogLevel    string
	HTTPPort    string
	// Stage selects the handler a bare `lambda` invocation serves.
	Stage string

	InputBucketName  string
	OutputBucketName string

	QueueBackend   string
	SqsQueueURL    string
	SqsQueueName   string
	MessageGroupID string
	RabbitMqURL    string
	RabbitMqQueue  string

	// ConsumerWorkers is the number of RabbitMQ consumers running Check.
	ConsumerWorkers int
	ListPageSize    int32

	// ChainToCheck keeps the read key on Update and announces it on the queue.
	ChainToCheck bool
	ChaosEnabled bool
}

// QueueName is the human readable name of the queue Update publishes to.
func (c *Config) QueueName() string {
	if c.QueueBackend == QueueBackendRabbitMQ {
		return c.RabbitMqQueue
	}
	return c.SqsQueueName
}

// QueueID is the destination Update publishes to for the configured backend.
func (c *Config) QueueID() string {
	if c.QueueBackend == QueueBackendRabbitMQ {
		return c.RabbitMqQueue
	}
	return c.SqsQueueURL
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("OTEL_SERVICE_NAME", "object-pipeline")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("QUEUE_BACKEND", QueueBackendSQS)
	v.SetDefault("SQS_MESSAGE_GROUP_ID", "otel")
	v.SetDefault("RABBITMQ_QUEUE", "object_check")
	v.SetDefault("RABBITMQ_WORKERS", 1)
	v.SetDefault("S3_LIST_PAGE_SIZE", 0)
	v.SetDefault("UPDATE_CHAIN_TO_CHECK", true)
	v.SetDefault("CHAOS_ENABLED", true)
}

// InitializeEnvs loads the optional dotenv file for APP_ENV and resolves the
// configuration once. Bucket and queue values are not validated; an empty
// value reaches the collaborator call and fails there.
func InitializeEnvs() *Config {
	loadDotenv(os.Getenv("APP_ENV"))

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return &Config{
		ServiceName:      v.GetString("OTEL_SERVICE_NAME"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		HTTPPort:         v.GetString("HTTP_PORT"),
		Stage:            v.GetString("PIPELINE_STAGE"),
		InputBucketName:  v.GetString("INPUT_S3_BUCKET_NAME"),
		OutputBucketName: v.GetString("OUTPUT_S3_BUCKET_NAME"),
		QueueBackend:     v.GetString("QUEUE_BACKEND"),
		SqsQueueURL:      v.GetString("SQS_QUEUE_URL"),
		SqsQueueName:     v.GetString("SQS_QUEUE_NAME"),
		MessageGroupID:   v.GetString("SQS_MESSAGE_GROUP_ID"),
		RabbitMqURL:      v.GetString("RABBITMQ_URL"),
		RabbitMqQueue:    v.GetString("RABBITMQ_QUEUE"),
		ConsumerWorkers:  v.GetInt("RABBITMQ_WORKERS"),
		ListPageSize:     v.GetInt32("S3_LIST_PAGE_SIZE"),
		ChainToCheck:     v.GetBool("UPDATE_CHAIN_TO_CHECK"),
		ChaosEnabled:     v.GetBool("CHAOS_ENABLED"),
	}
}

func loadDotenv(appEnv string) {
	switch appEnv {
	case "lambda":
		// Lambda injects its environment directly.
	case "dev", "":
		if err := godotenv.Load(".env.dev"); err == nil {
			logger.Log.Debug().Msg("Loaded .env.dev")
		} else if err := godotenv.Load(".env"); err == nil {
			logger.Log.Debug().Msg("Loaded .env")
		}
	default:
		fname := ".env." + appEnv
		if err := godotenv.Load(fname); err == nil {
			logger.Log.Debug().Str("file", fname).Msg("Loaded env file")
		} else if err := godotenv.Load(".env"); err == nil {
			logger.Log.Debug().Msg("Loaded .env")
		} else {
			logger.Log.Debug().Str("file", fname).Msg("No env file found, using system environment variables")
		}
	}
}

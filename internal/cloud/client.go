package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/kbforge/indexpool/internal/fault"
	"github.com/kbforge/indexpool/internal/logging"
)

// Config carries the remote endpoints the adapter talks to. All fields are
// required except Region, which falls back to the SDK's default resolution
// chain (environment, shared config, instance metadata).
type Config struct {
	// Region is the AWS region for all sub-service clients.
	Region string

	// VectorBucketARN identifies the vector bucket indexes are created in.
	VectorBucketARN string

	// VectorBucketName is the bucket's short name, required by the delete
	// and query APIs.
	VectorBucketName string

	// QueueURL is the ingestion queue messages are sent to.
	QueueURL string
}

// Validate reports the first missing required field.
func (c Config) Validate() error {
	if c.VectorBucketARN == "" {
		return fmt.Errorf("%w: vector bucket ARN is empty", fault.ErrConfig)
	}
	if c.VectorBucketName == "" {
		return fmt.Errorf("%w: vector bucket name is empty", fault.ErrConfig)
	}
	if c.QueueURL == "" {
		return fmt.Errorf("%w: queue URL is empty", fault.ErrConfig)
	}
	return nil
}

// vectorIndexAPI is the subset of the S3 Vectors client used by the
// adapter. It is satisfied by *s3vectors.Client and by test fakes, and it
// includes ListIndexes so it can be passed to the SDK's list paginator.
type vectorIndexAPI interface {
	CreateIndex(ctx context.Context, in *s3vectors.CreateIndexInput, optFns ...func(*s3vectors.Options)) (*s3vectors.CreateIndexOutput, error)
	DeleteIndex(ctx context.Context, in *s3vectors.DeleteIndexInput, optFns ...func(*s3vectors.Options)) (*s3vectors.DeleteIndexOutput, error)
	ListIndexes(ctx context.Context, in *s3vectors.ListIndexesInput, optFns ...func(*s3vectors.Options)) (*s3vectors.ListIndexesOutput, error)
	QueryVectors(ctx context.Context, in *s3vectors.QueryVectorsInput, optFns ...func(*s3vectors.Options)) (*s3vectors.QueryVectorsOutput, error)
}

// queueAPI is the subset of the SQS client used by the adapter.
type queueAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Client is the adapter over the S3 Vectors and SQS services. Sub-service
// clients are created lazily on first use and are safe for concurrent use.
type Client struct {
	cfg    Config
	awsCfg aws.Config
	log    *slog.Logger

	vectorsOnce sync.Once
	vectors     vectorIndexAPI

	queueOnce sync.Once
	queue     queueAPI
}

// NewClient resolves AWS credentials and returns an adapter for the given
// configuration. No remote calls are made; sub-service clients are built
// lazily on first use.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: loading AWS configuration: %v", fault.ErrConfig, err)
	}

	return &Client{
		cfg:    cfg,
		awsCfg: awsCfg,
		log:    logging.Logger(),
	}, nil
}

// vectorsClient returns the lazily built S3 Vectors client.
func (c *Client) vectorsClient() vectorIndexAPI {
	c.vectorsOnce.Do(func() {
		if c.vectors == nil {
			c.vectors = s3vectors.NewFromConfig(c.awsCfg)
		}
	})
	return c.vectors
}

// queueClient returns the lazily built SQS client.
func (c *Client) queueClient() queueAPI {
	c.queueOnce.Do(func() {
		if c.queue == nil {
			c.queue = sqs.NewFromConfig(c.awsCfg)
		}
	})
	return c.queue
}

package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors/types"
)

// CreateIndexInput carries the parameters for a new remote vector index.
type CreateIndexInput struct {
	Name                      string
	Dimension                 int32
	NonFilterableMetadataKeys []string
}

// IndexARN derives the stable remote identifier for an index name within a
// vector bucket. The derivation matches the remote service's ARN layout,
// which lets the provisioner compute the ARN before the create call.
func IndexARN(bucketARN, indexName string) string {
	return bucketARN + "/index/" + indexName
}

// CreateIndex creates a float32/cosine vector index in the configured
// vector bucket.
func (c *Client) CreateIndex(ctx context.Context, in CreateIndexInput) error {
	_, err := c.vectorsClient().CreateIndex(ctx, &s3vectors.CreateIndexInput{
		VectorBucketArn: aws.String(c.cfg.VectorBucketARN),
		IndexName:       aws.String(in.Name),
		DataType:        types.DataTypeFloat32,
		Dimension:       aws.Int32(in.Dimension),
		DistanceMetric:  types.DistanceMetricCosine,
		MetadataConfiguration: &types.MetadataConfiguration{
			NonFilterableMetadataKeys: in.NonFilterableMetadataKeys,
		},
	})
	if err != nil {
		return classify("create index "+in.Name, err)
	}
	c.log.Info("created vector index", "index_name", in.Name)
	return nil
}

// DeleteIndex removes the remote index identified by indexARN. A not-found
// response is success: the sweep re-issues deletes until the database row
// is gone, so the call must be idempotent.
func (c *Client) DeleteIndex(ctx context.Context, indexARN string) error {
	_, err := c.vectorsClient().DeleteIndex(ctx, &s3vectors.DeleteIndexInput{
		IndexArn: aws.String(indexARN),
	})
	if err != nil {
		if isNotFound(err) {
			c.log.Debug("vector index already absent", "index_arn", indexARN)
			return nil
		}
		return classify("delete index "+indexARN, err)
	}
	c.log.Info("deleted vector index", "index_arn", indexARN)
	return nil
}

// ListIndexCount pages through the bucket's indexes and returns how many
// exist, up to maxItems. Operators use this to compare the remote view
// against pool statistics.
func (c *Client) ListIndexCount(ctx context.Context, maxItems, pageSize int32) (int, error) {
	paginator := s3vectors.NewListIndexesPaginator(c.vectorsClient(), &s3vectors.ListIndexesInput{
		VectorBucketArn: aws.String(c.cfg.VectorBucketARN),
		MaxResults:      aws.Int32(pageSize),
	})

	count := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, classify("list indexes", err)
		}
		count += len(page.Indexes)
		if count >= int(maxItems) {
			return int(maxItems), nil
		}
	}
	return count, nil
}

// QueryVectors runs a nearest-neighbour query against the given index and
// returns the raw matches. The query-time path is not part of this service;
// the method exists for operational smoke checks against a provisioned
// index.
func (c *Client) QueryVectors(ctx context.Context, indexARN string, vector []float32, topK int32) ([]types.QueryOutputVector, error) {
	out, err := c.vectorsClient().QueryVectors(ctx, &s3vectors.QueryVectorsInput{
		VectorBucketName: aws.String(c.cfg.VectorBucketName),
		IndexArn:         aws.String(indexARN),
		TopK:             aws.Int32(topK),
		QueryVector:      &types.VectorDataMemberFloat32{Value: vector},
		ReturnMetadata:   true,
		ReturnDistance:   true,
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("query vectors in %s", indexARN), err)
	}
	return out.Vectors, nil
}

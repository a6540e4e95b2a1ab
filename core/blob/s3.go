package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/docstack-tech/docstack/core/logger"
)

// S3 is the implementation of the blob Driver for AWS S3
type S3 struct {
	config      aws.Config
	bucket      string
	baseKeyName string
}

// NewS3 returns a new S3 driver
func NewS3(s3Config S3Configuration) (*S3, error) {
	if s3Config.AWSBucketName == "" {
		return nil, fmt.Errorf("AWSBucketName must not be empty")
	}

	config, err := awsconfig.LoadDefaultConfig(
		context.TODO(),
		awsconfig.WithRegion(s3Config.AWSRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s3Config.AccessID, s3Config.AccessKey, "")),
	)
	if err != nil {
		return nil, err
	}
	logger.Default().Debugln("S3 blob storage enabled")
	return &S3{config, s3Config.AWSBucketName, s3Config.KeyPrefix}, nil
}

// Put stores the blob under key.
func (s S3) Put(ctx context.Context, key string, reader io.Reader) error {
	uploader := manager.NewUploader(s3.NewFromConfig(s.config))
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.baseKeyName + key),
		Body:   reader,
	})
	return err
}

// Get writes the blob stored under key to writer.
func (s S3) Get(ctx context.Context, key string, writer io.Writer) error {
	client := s3.NewFromConfig(s.config)
	output, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.baseKeyName + key),
	})
	if err != nil {
		return err
	}
	defer output.Body.Close()
	_, err = io.Copy(writer, output.Body)
	return err
}

// Delete deletes the key file
func (s S3) Delete(ctx context.Context, key string) error {
	logger.Default().Infoln("Deleting ", s.baseKeyName+key)
	client := s3.NewFromConfig(s.config)
	_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.baseKeyName + key),
	})
	return err
}

// DeleteAllWithPrefix deletes all keys starting with prefix
func (s S3) DeleteAllWithPrefix(ctx context.Context, prefix string) error {
	client := s3.NewFromConfig(s.config)

	var continuationToken *string
	for {
		listing, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.baseKeyName + prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return err
		}
		for _, object := range listing.Contents {
			_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    object.Key,
			})
			if err != nil {
				return err
			}
		}
		if listing.IsTruncated && listing.NextContinuationToken != nil {
			continuationToken = listing.NextContinuationToken
			continue
		}
		return nil
	}
}

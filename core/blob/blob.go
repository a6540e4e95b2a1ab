package blob

import (
	"context"
	"io"
)

// Package blob stores the binary file part of multipart envelopes outside of
// the document store. There are currently two possible backends: a local
// file system and AWS S3.

// Driver defines the interface for the blob storage service
type Driver interface {
	Put(ctx context.Context, key string, reader io.Reader) error
	Get(ctx context.Context, key string, writer io.Writer) error
	Delete(ctx context.Context, key string) error
	DeleteAllWithPrefix(ctx context.Context, prefix string) error
}

// DriverType represents the different types of blob drivers
type DriverType string

// DriverTypeLocal is the local filesystem implementation of the blob service
const DriverTypeLocal DriverType = "Local"

// DriverTypeAWSS3 is the AWS S3 implementation of the blob service
const DriverTypeAWSS3 DriverType = "AWSS3"

// None is used when there is no blob storage
const None DriverType = ""

// Configuration contains the configuration for the blob service
type Configuration struct {
	DriverType         DriverType
	LocalConfiguration *LocalConfiguration
	S3Configuration    *S3Configuration
}

// LocalConfiguration contains the configuration for the local filesystem
// blob service
type LocalConfiguration struct {
	BasePath string
}

// S3Configuration contains the configuration for the AWS S3 blob service
type S3Configuration struct {
	AWSRegion     string
	AWSBucketName string
	AccessID      string
	AccessKey     string
	KeyPrefix     string
}

// NewDriver creates the driver for the given configuration.
func NewDriver(config Configuration) (Driver, error) {
	switch config.DriverType {
	case DriverTypeLocal:
		return NewLocal(config.LocalConfiguration.BasePath)
	case DriverTypeAWSS3:
		return NewS3(*config.S3Configuration)
	default:
		return nil, nil
	}
}

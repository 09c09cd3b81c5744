// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-redfish.
//
// go-redfish is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package s3 stores a Redfish namespace in an S3 bucket, or in any
// service speaking the S3 API such as MinIO.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/jeremyhahn/go-redfish/pkg/blobfs"
	"github.com/jeremyhahn/go-redfish/pkg/common"
)

// S3API is the subset of the S3 client used by this package.
type S3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var _ S3API = (*s3.Client)(nil)

// ErrEndpointNotSet is returned when a MinIO backend has no endpoint.
var ErrEndpointNotSet = errors.New("endpoint not set")

// Bucket adapts one S3 bucket to blobfs.Bucket.
type Bucket struct {
	svc  S3API
	name string
}

var _ blobfs.Bucket = (*Bucket)(nil)

// NewBucket wraps an S3 client bound to the named bucket.
func NewBucket(svc S3API, name string) *Bucket {
	return &Bucket{svc: svc, name: name}
}

// NewStore returns a namespace store over the named bucket.
func NewStore(svc S3API, bucket string, opts ...blobfs.StoreOption) *blobfs.Store {
	return blobfs.NewStore(NewBucket(svc, bucket), opts...)
}

// Configure builds a store from backend settings.
//
// Settings:
//   - bucket: the bucket holding the namespace (required)
//   - prefix: key prefix for the namespace (optional)
//   - region: AWS region (optional)
//   - endpoint: custom endpoint URL for S3-compatible services (optional)
//   - access_key_id, secret_access_key: static credentials (optional)
//   - use_path_style: "true" to force path-style addressing (optional)
func Configure(ctx context.Context, settings map[string]string) (*blobfs.Store, error) {
	bucket := settings["bucket"]
	if bucket == "" {
		return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, blobfs.ErrBucketNotSet)
	}

	var opts []func(*config.LoadOptions) error
	if region := settings["region"]; region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if ak, sk := settings["access_key_id"], settings["secret_access_key"]; ak != "" && sk != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ak, sk, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := settings["endpoint"]; endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		if settings["use_path_style"] == "true" {
			o.UsePathStyle = true
		}
	})
	return NewStore(client, bucket, blobfs.WithPrefix(settings["prefix"])), nil
}

// ConfigureMinIO builds a store for a MinIO server. It takes the same
// settings as Configure but requires an endpoint, defaults the region to
// us-east-1 and always uses path-style addressing.
func ConfigureMinIO(ctx context.Context, settings map[string]string) (*blobfs.Store, error) {
	if settings["endpoint"] == "" {
		return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, ErrEndpointNotSet)
	}
	merged := make(map[string]string, len(settings)+2)
	for k, v := range settings {
		merged[k] = v
	}
	if merged["region"] == "" {
		merged["region"] = "us-east-1"
	}
	merged["use_path_style"] = "true"
	return Configure(ctx, merged)
}

func (b *Bucket) Head(ctx context.Context, key string) (blobfs.Attrs, error) {
	out, err := b.svc.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		return blobfs.Attrs{}, mapError(err)
	}
	return blobfs.Attrs{
		Size:     aws.ToInt64(out.ContentLength),
		Metadata: out.Metadata,
		Updated:  aws.ToTime(out.LastModified),
	}, nil
}

func (b *Bucket) Put(ctx context.Context, key string, data []byte, meta map[string]string) error {
	_, err := b.svc.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(b.name),
		Key:      aws.String(key),
		Body:     bytes.NewReader(data),
		Metadata: meta,
	})
	return mapError(err)
}

func (b *Bucket) ReadRange(ctx context.Context, key string, off, n int64) (io.ReadCloser, error) {
	out, err := b.svc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, off+n-1)),
	})
	if err != nil {
		return nil, mapError(err)
	}
	return out.Body, nil
}

func (b *Bucket) Copy(ctx context.Context, src, dst string) error {
	_, err := b.svc.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.name),
		Key:        aws.String(dst),
		CopySource: aws.String(b.copySource(src)),
	})
	return mapError(err)
}

// SetMetadata copies the object onto itself with replaced metadata.
func (b *Bucket) SetMetadata(ctx context.Context, key string, meta map[string]string) error {
	_, err := b.svc.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(b.name),
		Key:               aws.String(key),
		CopySource:        aws.String(b.copySource(key)),
		Metadata:          meta,
		MetadataDirective: types.MetadataDirectiveReplace,
	})
	return mapError(err)
}

func (b *Bucket) Delete(ctx context.Context, key string) error {
	_, err := b.svc.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return nil
	}
	return err
}

func (b *Bucket) Walk(ctx context.Context, prefix, delimiter string, fn func(key string, isPrefix bool) bool) error {
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.name),
		Prefix: aws.String(prefix),
	}
	if delimiter != "" {
		in.Delimiter = aws.String(delimiter)
	}

	pager := s3.NewListObjectsV2Paginator(b.svc, in)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range page.Contents {
			if !fn(aws.ToString(obj.Key), false) {
				return nil
			}
		}
		for _, cp := range page.CommonPrefixes {
			if !fn(aws.ToString(cp.Prefix), true) {
				return nil
			}
		}
	}
	return nil
}

func (b *Bucket) copySource(key string) string {
	return (&url.URL{Path: b.name + "/" + key}).EscapedPath()
}

// mapError converts S3 missing-key errors to common.ErrNotFound.
func mapError(err error) error {
	if err != nil && isNotFound(err) {
		return fmt.Errorf("%w: %w", common.ErrNotFound, err)
	}
	return err
}

// isNotFound reports whether err is an S3 missing-key error.
func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/docuchat/backend-go/internal/logger"
)

// ObjectStorage 原始文档对象存储抽象
type ObjectStorage interface {
	// UploadDocument 保存原始文件，返回存储位置标识
	UploadDocument(ctx context.Context, sessionID, filename string, data []byte) (string, error)
	Ready() bool
}

// MinioStorage 基于MinIO的对象存储
type MinioStorage struct {
	client   *minio.Client
	bucket   string
	basePath string
}

// MinioOptions MinIO客户端配置
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	BasePath  string
	UseSSL    bool
}

// NewMinioStorage 创建MinIO存储并确保bucket存在
func NewMinioStorage(opts MinioOptions) (*MinioStorage, error) {
	if opts.Bucket == "" {
		opts.Bucket = "rag-documents"
	}
	if opts.BasePath == "" {
		opts.BasePath = "rag_docs"
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("检查bucket失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建bucket失败: %w", err)
		}
		logger.Info("MinIO bucket created", zap.String("bucket", opts.Bucket))
	}

	return &MinioStorage{
		client:   client,
		bucket:   opts.Bucket,
		basePath: opts.BasePath,
	}, nil
}

// UploadDocument 上传原始文件，按会话归档
func (s *MinioStorage) UploadDocument(ctx context.Context, sessionID, filename string, data []byte) (string, error) {
	objectName := path.Join(s.basePath, sessionID, filename)

	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("上传文件失败: %w", err)
	}

	logger.Info("document uploaded to object storage",
		zap.String("bucket", s.bucket),
		zap.String("object", objectName),
		zap.Int("size", len(data)))
	return objectName, nil
}

func (s *MinioStorage) Ready() bool {
	if s == nil || s.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err == nil
}

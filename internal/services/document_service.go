package services

import (
	"bytes"
	"context"
	"io"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/docuchat/backend-go/internal/errors"
	"github.com/docuchat/backend-go/internal/logger"
	"github.com/docuchat/backend-go/internal/rag"
	"github.com/docuchat/backend-go/internal/storage"
)

// UploadRequest 文档上传请求
type UploadRequest struct {
	SessionID string `validate:"required,max=128"`
	Filename  string `validate:"required"`
	Reader    io.Reader
}

// UploadResult 文档上传结果
type UploadResult struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	TextLength int    `json:"text_length"`
	// StorageLocation 原始文件在对象存储中的位置，未配置存储时为空
	StorageLocation string `json:"storage_location,omitempty"`
}

// DocumentService 文档服务：解析文件、归档原始文件、写入索引
type DocumentService struct {
	pipeline *rag.Pipeline
	parsers  *rag.FileParserManager
	storage  storage.ObjectStorage // 可为nil
	validate *validator.Validate
}

// NewDocumentService 创建文档服务。objectStorage为nil时跳过原始文件归档
func NewDocumentService(pipeline *rag.Pipeline, parsers *rag.FileParserManager,
	objectStorage storage.ObjectStorage) *DocumentService {
	return &DocumentService{
		pipeline: pipeline,
		parsers:  parsers,
		storage:  objectStorage,
		validate: validator.New(),
	}
}

// Upload 上传并入库一份文档
func (s *DocumentService) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.NewValidationError(apperrors.ErrCodeValidationFailed,
			err.Error())
	}

	data, err := io.ReadAll(req.Reader)
	if err != nil {
		return nil, apperrors.NewExternalError(apperrors.ErrCodeParseFailed,
			"failed to read upload", err)
	}

	text, err := s.parsers.ParseFile(bytes.NewReader(data), req.Filename)
	if err != nil {
		apperrors.RecordError(err, "document.parse")
		return nil, err
	}

	result := &UploadResult{Filename: req.Filename}

	// 原始文件归档失败只告警，不阻塞入库
	if s.storage != nil {
		location, err := s.storage.UploadDocument(ctx, req.SessionID, req.Filename, data)
		if err != nil {
			logger.Warn("failed to archive raw document",
				zap.String("filename", req.Filename), zap.Error(err))
		} else {
			result.StorageLocation = location
		}
	}

	ingested, err := s.pipeline.Ingest(ctx, rag.IngestRequest{
		SessionID: req.SessionID,
		Filename:  req.Filename,
		Text:      text,
	})
	if err != nil {
		apperrors.RecordError(err, "document.ingest")
		return nil, err
	}

	documentsIngested.Inc()
	chunksIndexed.Add(float64(ingested.ChunkCount))

	result.DocumentID = ingested.DocumentID
	result.ChunkCount = ingested.ChunkCount
	result.TextLength = ingested.TextLength
	return result, nil
}

// IngestText 直接入库一段文本，跳过文件解析和归档
func (s *DocumentService) IngestText(ctx context.Context, sessionID, filename, text string) (*UploadResult, error) {
	ingested, err := s.pipeline.Ingest(ctx, rag.IngestRequest{
		SessionID: sessionID,
		Filename:  filename,
		Text:      text,
	})
	if err != nil {
		apperrors.RecordError(err, "document.ingest")
		return nil, err
	}

	documentsIngested.Inc()
	chunksIndexed.Add(float64(ingested.ChunkCount))

	return &UploadResult{
		DocumentID: ingested.DocumentID,
		Filename:   filename,
		ChunkCount: ingested.ChunkCount,
		TextLength: ingested.TextLength,
	}, nil
}

// DeleteDocument 从索引中删除文档
func (s *DocumentService) DeleteDocument(ctx context.Context, documentID string) error {
	return s.pipeline.DeleteDocument(ctx, documentID)
}

// SupportedFormats 返回支持的文件格式
func (s *DocumentService) SupportedFormats() []string {
	return s.parsers.SupportedFormats()
}

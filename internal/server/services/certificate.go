package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/certsync/certsync/internal/common"
	"github.com/certsync/certsync/internal/server/config"
	"github.com/certsync/certsync/internal/server/models"
	"github.com/certsync/certsync/internal/server/repositories/certificates"
)

// ErrInvalidPayload marks a certificate body the server refuses to store.
// Unlike a transport failure, retrying the same payload will never succeed.
var ErrInvalidPayload = errors.New("invalid certificate payload")

// AWS entry points are indirected through function variables so presign
// tests can run without credentials or a live endpoint.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// CertificateService implements the server side of the sync protocol:
// idempotent creation, full-payload upserts, snapshot reads and presigned
// attachment uploads.
type CertificateService struct {
	certs  certificates.Repository
	config *config.Config
}

func NewCertificateService(certs certificates.Repository, cfg *config.Config) *CertificateService {
	return &CertificateService{certs: certs, config: cfg}
}

// Create registers a certificate under a fresh permanent id. The clientRef
// makes it idempotent: replays resolve to the first assigned id.
func (s *CertificateService) Create(ctx context.Context, userID, clientRef string, data []byte) (*models.Certificate, error) {
	if clientRef == "" || !json.Valid(data) {
		return nil, ErrInvalidPayload
	}

	cert := &models.Certificate{
		ID:        common.NewPermID(),
		UserID:    userID,
		ClientRef: clientRef,
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}
	return s.certs.CreateIdempotent(ctx, cert)
}

// Update replaces the stored payload, returning the new authoritative
// timestamp.
func (s *CertificateService) Update(ctx context.Context, userID, id string, data []byte) (*models.Certificate, error) {
	if !json.Valid(data) {
		return nil, ErrInvalidPayload
	}

	cert := &models.Certificate{
		ID:        id,
		UserID:    userID,
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}
	return s.certs.Update(ctx, cert)
}

// Get returns the caller's certificate, or common.ErrNotFound.
func (s *CertificateService) Get(ctx context.Context, userID, id string) (*models.Certificate, error) {
	return s.certs.Get(ctx, userID, id)
}

func attachmentStorageKey(certificateID string) string {
	d := time.Now()
	return fmt.Sprintf("certificates/%s/%d/%d/%d/%v", certificateID, d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *CertificateService) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

// GetPresignedPutURL allocates an object key under the certificate and
// returns it with a presigned PUT URL valid for 15 minutes. The certificate
// must exist and belong to the caller.
func (s *CertificateService) GetPresignedPutURL(ctx context.Context, userID, certificateID, contentType string) (string, string, error) {
	if _, err := s.certs.Get(ctx, userID, certificateID); err != nil {
		return "", "", err
	}

	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key := attachmentStorageKey(certificateID)

	in := &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}
	if contentType != "" {
		in.ContentType = &contentType
	}

	req, err := presignPutObject(presignClient, ctx, in, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}

// Package media uploads listing images to the external image host.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrNotConfigured is returned when the cloud name or upload preset is missing.
var ErrNotConfigured = errors.New("media: upload is not configured")

const defaultEndpoint = "https://api.cloudinary.com/v1_1"

// File is one image to upload.
type File struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// Uploader posts unsigned uploads to Cloudinary using an upload preset.
type Uploader struct {
	logger       *logrus.Logger
	client       *http.Client
	endpoint     string
	cloudName    string
	uploadPreset string
}

func NewUploader(cloudName, uploadPreset string, logger *logrus.Logger) *Uploader {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Uploader{
		logger:       logger,
		client:       &http.Client{},
		endpoint:     defaultEndpoint,
		cloudName:    cloudName,
		uploadPreset: uploadPreset,
	}
}

// WithEndpoint points the uploader at another API root, e.g. a test server.
func (u *Uploader) WithEndpoint(endpoint string, client *http.Client) *Uploader {
	clone := *u
	clone.endpoint = endpoint
	if client != nil {
		clone.client = client
	}
	return &clone
}

// Configured reports whether uploads can be attempted.
func (u *Uploader) Configured() bool {
	return u.cloudName != "" && u.uploadPreset != ""
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Upload sends one image and returns its public https URL.
func (u *Uploader) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	if !u.Configured() {
		u.logger.Error("Cloudinary settings are missing")
		return "", ErrNotConfigured
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if err := form.WriteField("upload_preset", u.uploadPreset); err != nil {
		return "", fmt.Errorf("failed to write form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to write form: %w", err)
	}

	url := fmt.Sprintf("%s/%s/image/upload", u.endpoint, u.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		u.logger.WithError(err).WithField("file", filename).Error("Image upload failed")
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var result uploadResponse
	_ = json.Unmarshal(respBody, &result)

	if resp.StatusCode != http.StatusOK {
		message := resp.Status
		if result.Error != nil && result.Error.Message != "" {
			message = result.Error.Message
		}
		u.logger.WithFields(logrus.Fields{
			"file":   filename,
			"status": resp.StatusCode,
		}).Error("Image host rejected upload")
		return "", fmt.Errorf("upload failed: %s", message)
	}

	if result.SecureURL == "" {
		return "", errors.New("upload failed: response carried no secure_url")
	}

	u.logger.WithFields(logrus.Fields{
		"file": filename,
		"url":  result.SecureURL,
	}).Info("Uploaded image")

	return result.SecureURL, nil
}

// UploadAll uploads files concurrently and returns their URLs in input order.
// The first failure cancels the remaining uploads.
func (u *Uploader) UploadAll(ctx context.Context, files []File) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if !u.Configured() {
		return nil, ErrNotConfigured
	}

	urls := make([]string, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", f.Name, err)
			}
			defer rc.Close()

			url, err := u.Upload(ctx, f.Name, rc)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

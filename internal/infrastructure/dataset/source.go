package dataset

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/zetta-ds/carsigef/internal/config"
	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/logging"
	apperrors "github.com/zetta-ds/carsigef/pkg/errors"
)

// resolveSource makes sure cfg.Path exists locally, materializing it from the
// archive or the remote source when needed, and returns the path to read.
//
// Resolution order: local CSV, local zip archive, source URL (http(s) or s3).
func resolveSource(ctx context.Context, cfg config.DatasetConfig, log logging.Logger) (string, error) {
	if fileExists(cfg.Path) {
		return cfg.Path, nil
	}

	if cfg.ArchivePath != "" && fileExists(cfg.ArchivePath) {
		log.Info("extracting dataset archive",
			logging.String("archive", cfg.ArchivePath),
			logging.String("target", cfg.Path))
		if err := extractCSV(cfg.ArchivePath, cfg.Path); err != nil {
			return "", err
		}
		return cfg.Path, nil
	}

	if cfg.SourceURL != "" {
		log.Info("downloading dataset",
			logging.String("url", cfg.SourceURL),
			logging.String("target", cfg.Path))
		if err := download(ctx, cfg, log); err != nil {
			return "", err
		}
		if strings.HasSuffix(strings.ToLower(cfg.Path), ".zip") {
			return "", apperrors.New(apperrors.ErrCodeDataUnavailable,
				"dataset.path must point at the CSV, not the archive")
		}
		return cfg.Path, nil
	}

	return "", apperrors.New(apperrors.ErrCodeDataUnavailable,
		"dataset not found").WithDetail(fmt.Sprintf("no file at %s, no archive, no source URL", cfg.Path))
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// extractCSV pulls the first .csv entry out of a zip archive and writes it to
// target, creating parent directories as needed.
func extractCSV(archivePath, target string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "open dataset archive")
	}
	defer r.Close()

	want := filepath.Base(target)
	var entry *zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(f.Name)
		if name == want {
			entry = f
			break
		}
		if entry == nil && strings.EqualFold(filepath.Ext(name), ".csv") {
			entry = f
		}
	}
	if entry == nil {
		return apperrors.New(apperrors.ErrCodeDataUnavailable, "archive contains no CSV").
			WithDetail(archivePath)
	}

	src, err := entry.Open()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "open archive entry")
	}
	defer src.Close()

	return writeAtomically(target, src)
}

func download(ctx context.Context, cfg config.DatasetConfig, log logging.Logger) error {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u, err := url.Parse(cfg.SourceURL)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "parse dataset source URL")
	}

	switch u.Scheme {
	case "http", "https":
		return downloadHTTP(ctx, cfg.SourceURL, cfg.Path)
	case "s3":
		return downloadS3(ctx, u, cfg)
	default:
		return apperrors.New(apperrors.ErrCodeBadRequest, "unsupported dataset source scheme").
			WithDetail(u.Scheme)
	}
}

func downloadHTTP(ctx context.Context, rawURL, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "build dataset request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "fetch dataset")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.New(apperrors.ErrCodeDataUnavailable, "dataset source returned an error").
			WithDetail(resp.Status)
	}
	return writeAtomically(target, resp.Body)
}

// downloadS3 fetches s3://bucket/key via the configured S3-compatible
// endpoint.
func downloadS3(ctx context.Context, u *url.URL, cfg config.DatasetConfig) error {
	bucket := u.Host
	object := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || object == "" {
		return apperrors.New(apperrors.ErrCodeBadRequest, "s3 source must be s3://bucket/key").
			WithDetail(u.String())
	}

	client, err := minio.New(cfg.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		Secure: cfg.S3.UseSSL,
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "create s3 client")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "create dataset directory")
	}
	if err := client.FGetObject(ctx, bucket, object, cfg.Path, minio.GetObjectOptions{}); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "fetch dataset from s3")
	}
	return nil
}

// writeAtomically streams src into target via a temp file plus rename so a
// concurrent reader never observes a partial CSV.
func writeAtomically(target string, src io.Reader) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "create dataset directory")
	}
	tmp, err := os.CreateTemp(dir, ".carsigef-*.csv")
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "create temp dataset file")
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "write dataset file")
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "close dataset file")
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDataUnavailable, "move dataset file into place")
	}
	return nil
}

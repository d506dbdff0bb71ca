// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/AleutianAI/threeones/services/finder/table"
)

// ErrNoBucket is returned when publishing without a bucket name.
var ErrNoBucket = errors.New("no bucket configured")

// ObjectWriterFunc opens a writer for one object. Closing the writer
// completes the upload.
type ObjectWriterFunc func(ctx context.Context, name string) io.WriteCloser

// Publisher uploads table text dumps to object storage.
type Publisher struct {
	open   ObjectWriterFunc
	bucket string
	prefix string
	close  func() error
	logger *slog.Logger
}

// NewGCSPublisher creates a Publisher writing to a GCS bucket.
//
// Inputs:
//
//	ctx - Used to create the storage client.
//	bucket - Bucket name. Required.
//	prefix - Prepended to every object name.
//	credentialsFile - Service account key path. Empty uses application
//	  default credentials.
//	logger - Optional.
func NewGCSPublisher(ctx context.Context, bucket, prefix, credentialsFile string, logger *slog.Logger) (*Publisher, error) {
	if bucket == "" {
		return nil, ErrNoBucket
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("service account key not found at path %s: %w", credentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	handle := client.Bucket(bucket)

	p := NewPublisher(bucket, prefix, func(ctx context.Context, name string) io.WriteCloser {
		w := handle.Object(name).NewWriter(ctx)
		w.ContentType = "text/plain; charset=utf-8"
		w.CacheControl = "no-cache, no-store, must-revalidate"
		return w
	}, logger)
	p.close = client.Close
	return p, nil
}

// NewPublisher creates a Publisher over any object writer.
func NewPublisher(bucket, prefix string, open ObjectWriterFunc, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{
		open:   open,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

// ObjectName returns the object name a table of size n is published under.
func (p *Publisher) ObjectName(n int) string {
	return path.Join(p.prefix, fmt.Sprintf("threeones-n%04d.txt", n))
}

// Publish uploads t's text dump and returns its gs:// URL.
func (p *Publisher) Publish(ctx context.Context, t *table.Table) (string, error) {
	name := p.ObjectName(t.N())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := p.open(ctx, name)

	if err := t.WriteText(w); err != nil {
		// Cancelling before Close aborts the upload.
		cancel()
		w.Close()
		return "", fmt.Errorf("failed to write table %d to %s: %w", t.N(), name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer for %s: %w", name, err)
	}

	url := fmt.Sprintf("gs://%s/%s", p.bucket, name)
	p.logger.Info("table published", slog.Int("n", t.N()), slog.String("url", url))
	return url, nil
}

// Close releases the underlying client, if any.
func (p *Publisher) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

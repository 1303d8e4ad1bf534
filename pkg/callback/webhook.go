/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package callback delivers issuance flow notifications to a client-supplied
// webhook endpoint.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/veridia/vci/internal/logfields"
	"github.com/veridia/vci/pkg/issuance"
)

var logger = log.New("callback")

const (
	contentTypeJSON = "application/json"

	defaultMaxRetries      = 3
	defaultInitialInterval = 500 * time.Millisecond
)

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Sink posts flow notifications to a webhook URL. Server-side failures are
// retried with exponential backoff; client errors are not.
type Sink struct {
	url        string
	httpClient httpClient
	maxRetries uint64
}

type Opt func(sink *Sink)

func WithMaxRetries(maxRetries uint64) Opt {
	return func(sink *Sink) {
		sink.maxRetries = maxRetries
	}
}

// NewSink creates Sink.
func NewSink(url string, httpClient httpClient, opts ...Opt) *Sink {
	sink := &Sink{
		url:        url,
		httpClient: httpClient,
		maxRetries: defaultMaxRetries,
	}

	for _, opt := range opts {
		opt(sink)
	}

	return sink
}

// Notify posts the status to the webhook URL.
func (s *Sink) Notify(ctx context.Context, status *issuance.CallbackStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal callback status: %w", err)
	}

	post := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}

		req.Header.Set("Content-Type", contentTypeJSON)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return err
		}

		defer func() {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}()

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			return backoff.Permanent(fmt.Errorf("webhook returned status %d", resp.StatusCode))
		}

		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultInitialInterval

	err = backoff.Retry(post, backoff.WithContext(backoff.WithMaxRetries(b, s.maxRetries), ctx))
	if err != nil {
		logger.Warnc(ctx, "webhook delivery failed", log.WithError(err),
			logfields.WithCallbackID(status.CallbackID))

		return err
	}

	return nil
}

// Copyright 2024 The Jepsen Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

// Package admin reads cluster status off a node's out-of-band management
// interface. This is a deliberately separate channel from the client driver
// protocol: the two give independent views of cluster membership, and the
// harness cross-checks convergence through both.
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/fruch/jepsen/pkg/cassprod/config"
)

// Client reads membership attributes from one cluster member's management
// interface. An error from any method is a soft failure: the caller is
// expected to try a different node.
type Client interface {
	// LiveNodes returns the addresses the queried node believes are live.
	LiveNodes(ctx context.Context, addr string) ([]string, error)
	// JoiningNodes returns the addresses the queried node believes are
	// joining.
	JoiningNodes(ctx context.Context, addr string) ([]string, error)
}

const storageServiceMBean = "org.apache.cassandra.db:type=StorageService"

// HTTPClient is a Client that reads management attributes over the node's
// HTTP-to-JMX bridge.
type HTTPClient struct {
	port   int
	client *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient returns an HTTPClient talking to the given management port.
// Pass 0 for the default.
func NewHTTPClient(port int) *HTTPClient {
	if port == 0 {
		port = config.AdminPort
	}
	return &HTTPClient{
		port:   port,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// LiveNodes implements Client.
func (c *HTTPClient) LiveNodes(ctx context.Context, addr string) ([]string, error) {
	return c.readAttribute(ctx, addr, "LiveNodes")
}

// JoiningNodes implements Client.
func (c *HTTPClient) JoiningNodes(ctx context.Context, addr string) ([]string, error) {
	return c.readAttribute(ctx, addr, "JoiningNodes")
}

type readRequest struct {
	Type      string `json:"type"`
	MBean     string `json:"mbean"`
	Attribute string `json:"attribute"`
}

type readResponse struct {
	Value  []string `json:"value"`
	Status int      `json:"status"`
	Error  string   `json:"error"`
}

func (c *HTTPClient) readAttribute(ctx context.Context, addr, attr string) ([]string, error) {
	reqBody, err := json.Marshal(readRequest{
		Type:      "read",
		MBean:     storageServiceMBean,
		Attribute: attr,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("http://%s:%d/jolokia/", addr, c.port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s from %s", attr, addr)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("%s: HTTP %d reading %s", addr, resp.StatusCode, attr)
	}

	var parsed readResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrapf(err, "parsing %s response from %s", attr, addr)
	}
	if parsed.Status != http.StatusOK {
		return nil, errors.Errorf("%s: management status %d reading %s: %s",
			addr, parsed.Status, attr, parsed.Error)
	}
	return parsed.Value, nil
}

// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hdfsfile

import (
	"context"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// ClientProvider is responsible for creating namenode clients. Get() is
// called whenever an hdfsFile needs to access a file. The provider should
// cache and reuse the client objects. The implementation must be thread safe.
type ClientProvider interface {
	// Get returns a client for the namenode named by the URL authority
	// "namenode", e.g., "learn:9000" or an HA nameservice id.
	Get(ctx context.Context, namenode string) (Client, error)

	// Close releases every client handed out by Get. Clients must not be used
	// after Close.
	Close() error
}

type defaultProvider struct {
	conf      *Config
	newClient func(*Config, string) (Client, error)

	mu      sync.Mutex
	clients map[string]Client
}

// NewDefaultProvider creates a ClientProvider that connects to namenodes as
// described by conf, and keeps one client per namenode.
func NewDefaultProvider(conf *Config) ClientProvider {
	return &defaultProvider{
		conf:      conf,
		newClient: dialClient,
		clients:   make(map[string]Client),
	}
}

func dialClient(conf *Config, namenode string) (Client, error) {
	opts, err := conf.ClientOptions(namenode)
	if err != nil {
		return nil, err
	}
	log.Debug.Printf("hdfsfile: connecting to %v as %q", opts.Addresses, opts.User)
	return NewClient(opts)
}

func (p *defaultProvider) Get(ctx context.Context, namenode string) (Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clients == nil {
		return nil, errors.E(errors.Invalid, "hdfsfile: provider is closed")
	}
	if c, ok := p.clients[namenode]; ok {
		return c, nil
	}
	c, err := p.newClient(p.conf, namenode)
	if err != nil {
		return nil, errors.E(err, errors.Unavailable, "hdfsfile: connect", namenode)
	}
	p.clients[namenode] = c
	return c, nil
}

func (p *defaultProvider) Close() error {
	p.mu.Lock()
	clients := p.clients
	p.clients = nil
	p.mu.Unlock()
	var once errors.Once
	for nn, c := range clients {
		if err := c.Close(); err != nil {
			once.Set(errors.E(err, "hdfsfile: close client", nn))
		}
	}
	return once.Err()
}

// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package server exposes the gateway's HTTP surface: device listing, energy
// resolution, the cached-latest endpoint, snapshot ingestion and chat.
package server

import (
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/votrix/tapo-energy-gateway/chat"
	"github.com/votrix/tapo-energy-gateway/config"
	"github.com/votrix/tapo-energy-gateway/devices"
	"github.com/votrix/tapo-energy-gateway/energy"
	"github.com/votrix/tapo-energy-gateway/pkg/logger"
)

// Server holds the handlers' dependencies. The live-read flag and the ingest
// secret are mutable: a SIGHUP config reload updates them mid-flight.
type Server struct {
	directory    devices.Directory
	resolver     *energy.Resolver
	cache        energy.Cache
	chatModel    chat.Model
	validate     *validator.Validate
	httpLog      bool
	systemPrompt string

	mu           sync.RWMutex
	allowLive    bool
	ingestSecret string
	ingestTTL    time.Duration
}

// New creates the HTTP server component. chatModel may be nil, in which case
// the chat route is not registered.
func New(directory devices.Directory, resolver *energy.Resolver, cache energy.Cache, chatModel chat.Model, cfg *config.Config) *Server {
	return &Server{
		directory:    directory,
		resolver:     resolver,
		cache:        cache,
		chatModel:    chatModel,
		validate:     validator.New(),
		httpLog:      cfg.Server.HTTPLog,
		systemPrompt: cfg.Chat.SystemPrompt,
		allowLive:    cfg.Server.AllowLiveReads,
		ingestSecret: cfg.Ingest.Secret,
		ingestTTL:    cfg.Cache.IngestTTL,
	}
}

// UpdateConfig applies the reloadable parts of a fresh configuration.
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowLive = cfg.Server.AllowLiveReads
	s.ingestSecret = cfg.Ingest.Secret
	s.ingestTTL = cfg.Cache.IngestTTL
	logger.Info().Bool("allow_live_reads", cfg.Server.AllowLiveReads).Msg("Server configuration updated")
}

func (s *Server) allowLiveReads() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowLive
}

func (s *Server) ingestSecretValue() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ingestSecret
}

func (s *Server) ingestTTLValue() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ingestTTL
}

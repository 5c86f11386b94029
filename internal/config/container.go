package config

import (
	"fmt"
	"time"

	"careerprep/internal/domain"
	"careerprep/internal/infra/supabase"
	"careerprep/internal/repository"
	"careerprep/internal/service"
	"careerprep/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config         domain.Config
	Logger         domain.Logger
	SupabaseClient domain.SupabaseClient
	LocalStore     domain.LocalStore

	ChallengeSource    domain.ChallengeSource
	UsageSource        domain.UsageSource
	SubscriptionSource domain.SubscriptionSource
	EventSource        domain.EventSource

	AuthService   domain.AuthService
	Entitlements  *service.EntitlementService
	Notifications *service.NotificationChannel
	Sessions      *service.SessionManager

	closers []func() error
}

// NewContainer creates a new dependency injection container
func NewContainer() (*Container, error) {
	config := NewConfig()
	appLogger := logger.NewLogger(config.GetLogLevel())

	// Initialize Supabase client
	supabaseClient := supabase.NewSupabaseClient(config, appLogger)
	if err := supabaseClient.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize supabase: %w", err)
	}

	c := &Container{
		Config:         config,
		Logger:         appLogger,
		SupabaseClient: supabaseClient,
	}

	if err := c.openLocalStore(); err != nil {
		return nil, err
	}

	// Initialize repositories
	c.ChallengeSource = repository.NewSupabaseChallengeRepository(supabaseClient, appLogger)
	c.UsageSource = repository.NewSupabaseUsageRepository(supabaseClient, appLogger)
	c.SubscriptionSource = repository.NewSupabaseSubscriptionRepository(supabaseClient, appLogger)
	c.EventSource = repository.NewSupabaseEventRepository(supabaseClient, config.GetEventPollInterval(), appLogger)

	if err := c.wireServices(); err != nil {
		return nil, err
	}
	return c, nil
}

// openLocalStore opens the sqlite state file, or keeps state in memory when no
// path is configured.
func (c *Container) openLocalStore() error {
	path := c.Config.GetLocalStatePath()
	if path == "" {
		c.Logger.Warn("LOCAL_STATE_PATH is empty, local state will not survive restarts")
		c.LocalStore = repository.NewMemoryLocalStore()
		return nil
	}
	store, err := repository.NewSQLiteLocalStore(path)
	if err != nil {
		return fmt.Errorf("failed to open local state: %w", err)
	}
	c.Logger.Info("Local state opened", "path", path)
	c.LocalStore = store
	c.closers = append(c.closers, store.Close)
	return nil
}

// wireServices builds the services on top of the sources already set on c.
func (c *Container) wireServices() error {
	retry := service.DefaultRetryPolicy()
	retry.MaxAttempts = c.Config.GetRetryMaxAttempts()
	retry.BaseDelay = c.Config.GetRetryBaseDelay()
	retry.Timeout = c.Config.GetNetworkTimeout()

	stores := func(userID string) domain.LocalStore {
		return repository.Scoped(c.LocalStore, repository.UserScope(userID))
	}

	entitlements, err := service.NewEntitlementService(
		domain.DefaultCatalog(),
		c.SubscriptionSource,
		c.UsageSource,
		stores,
		retry,
		c.Logger,
	)
	if err != nil {
		return fmt.Errorf("invalid feature catalog: %w", err)
	}

	c.AuthService = service.NewAuthService(c.SupabaseClient, c.Logger)
	c.Entitlements = entitlements
	c.Notifications = service.NewNotificationChannel(c.Logger)
	c.Sessions = service.NewSessionManager(
		service.SessionManagerOptions{
			Duration:     time.Duration(c.Config.GetChallengeDuration()) * time.Second,
			TickInterval: c.Config.GetTickInterval(),
			Retry:        retry,
			AutoRetry:    retry,
		},
		c.ChallengeSource,
		stores,
		entitlements,
		c.Notifications,
		c.Logger,
	)
	return nil
}

// Close stops background work and releases the local store.
func (c *Container) Close() error {
	if c.Sessions != nil {
		c.Sessions.Close()
	}
	if c.Notifications != nil {
		c.Notifications.Close()
	}
	var firstErr error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GetConfig returns the configuration instance
func (c *Container) GetConfig() domain.Config {
	return c.Config
}

// GetLogger returns the logger instance
func (c *Container) GetLogger() domain.Logger {
	return c.Logger
}

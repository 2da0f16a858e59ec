package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/justyntemme/exlibris/internal/config"
	"github.com/justyntemme/exlibris/internal/covers"
	"github.com/justyntemme/exlibris/internal/logging"
	"github.com/justyntemme/exlibris/internal/metadata"
	"github.com/justyntemme/exlibris/internal/storage"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	logger     *log.Logger
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && *c.logLevelFlag != "" {
			cfg.LogLevel = *c.logLevelFlag
		}
		logger, err := logging.New(os.Stderr, cfg.LogLevel)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.logger = logger
	})
	return c.config, c.configErr
}

// catalogStore bundles everything backed by the data directory
type catalogStore struct {
	db     *storage.Database
	files  *storage.FileStorage
	images *storage.ImageStore
}

func (s *catalogStore) Close() error {
	return s.db.Close()
}

func (c *commandContext) openStore() (*catalogStore, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %q: %w", cfg.Storage.DataDir, err)
	}

	db, err := storage.NewDatabase(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	files, err := storage.NewFileStorage(cfg.Storage.DataDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open file storage: %w", err)
	}

	c.logger.Debug("opened catalog", "database", cfg.DatabasePath())
	return &catalogStore{
		db:     db,
		files:  files,
		images: storage.NewImageStore(db, files, c.logger),
	}, nil
}

// lookupService builds the Google Books lookup with Open Library as fallback
func (c *commandContext) lookupService() *metadata.Service {
	cfg := c.config

	var googleOpts, olOpts []metadata.Option
	if cfg.Lookup.GoogleBaseURL != "" {
		googleOpts = append(googleOpts, metadata.WithBaseURL(cfg.Lookup.GoogleBaseURL))
	}
	if cfg.Lookup.OpenLibraryBaseURL != "" {
		olOpts = append(olOpts, metadata.WithBaseURL(cfg.Lookup.OpenLibraryBaseURL))
	}

	svc := metadata.NewService(
		metadata.NewGoogleBooksProvider(cfg.Lookup.GoogleAPIKey, cfg.Lookup.Timeout.Duration, googleOpts...),
		metadata.NewOpenLibraryProvider(cfg.Lookup.Timeout.Duration, olOpts...),
		c.logger,
	)
	svc.SetRateLimit(cfg.Lookup.RatePerSecond, cfg.Lookup.Burst)
	return svc
}

func (c *commandContext) coverCacher(store covers.Store) *covers.Cacher {
	return covers.NewCacher(store, c.config.Covers.Timeout.Duration, c.logger)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crosswalk-data/crosswalk-engine/pkg/crypto"
	"github.com/crosswalk-data/crosswalk-engine/pkg/logging"
	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
	"github.com/crosswalk-data/crosswalk-engine/pkg/repositories"
	enginesql "github.com/crosswalk-data/crosswalk-engine/pkg/sql"
	"github.com/crosswalk-data/crosswalk-engine/pkg/store"
)

// ValueStoreService manages value store configurations and their live stores.
type ValueStoreService interface {
	Upsert(ctx context.Context, config *models.ValueStoreConfig) error
	Get(ctx context.Context, name string) (*models.ValueStoreConfig, *models.StoreStatus, error)
	List(ctx context.Context) ([]*models.ValueStoreConfig, error)
	Delete(ctx context.Context, name string) error
}

// ScheduleNotifier receives configuration changes that affect scheduled
// refreshes. The refresh scheduler implements it.
type ScheduleNotifier interface {
	ConfigChanged(config *models.ValueStoreConfig)
	ConfigDeleted(name string)
}

type valueStoreService struct {
	configRepo       repositories.ValueStoreConfigRepository
	confirmationRepo repositories.ConfirmationRepository
	learnedRepo      repositories.LearnedTermRepository
	registry         store.Registry
	encryptor        *crypto.CredentialEncryptor
	scheduler        ScheduleNotifier
	logger           *zap.Logger
}

// NewValueStoreService creates a new ValueStoreService. scheduler may be nil
// when scheduled refreshes are disabled.
func NewValueStoreService(
	configRepo repositories.ValueStoreConfigRepository,
	confirmationRepo repositories.ConfirmationRepository,
	learnedRepo repositories.LearnedTermRepository,
	registry store.Registry,
	encryptor *crypto.CredentialEncryptor,
	scheduler ScheduleNotifier,
	logger *zap.Logger,
) ValueStoreService {
	return &valueStoreService{
		configRepo:       configRepo,
		confirmationRepo: confirmationRepo,
		learnedRepo:      learnedRepo,
		registry:         registry,
		encryptor:        encryptor,
		scheduler:        scheduler,
		logger:           logger.Named("value-store-service"),
	}
}

var _ ValueStoreService = (*valueStoreService)(nil)

// encryptedConnectionKeys are source connection fields encrypted at rest.
var encryptedConnectionKeys = []string{"password"}

func (s *valueStoreService) Upsert(ctx context.Context, config *models.ValueStoreConfig) error {
	if err := validateConfig(config); err != nil {
		return err
	}

	result := enginesql.ValidateAndNormalize(config.SourceQuery)
	if result.Error != nil {
		return fmt.Errorf("invalid source query: %w", result.Error)
	}
	config.SourceQuery = result.NormalizedSQL

	if config.Schedule != "" {
		if _, err := time.ParseDuration(config.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", config.Schedule, err)
		}
	}

	for _, key := range encryptedConnectionKeys {
		plaintext, ok := config.SourceConnection[key].(string)
		if !ok || plaintext == "" {
			continue
		}
		encrypted, err := s.encryptor.Encrypt(plaintext)
		if err != nil {
			return fmt.Errorf("failed to encrypt source credentials: %w", err)
		}
		config.SourceConnection[key] = encrypted
	}

	if err := s.configRepo.Upsert(ctx, config); err != nil {
		return err
	}

	// Register the store immediately so resolution against it returns empty
	// results rather than unknown-store errors before the first refresh.
	s.registry.GetOrCreate(config.Name)

	if s.scheduler != nil {
		s.scheduler.ConfigChanged(config)
	}

	s.logger.Info("Value store configured",
		zap.String("store", config.Name),
		zap.String("domain", config.Domain),
		zap.Strings("entity_types", config.EntityTypes),
		zap.Any("source_connection", logging.SanitizeConnectionConfig(config.SourceConnection)))

	return nil
}

func (s *valueStoreService) Get(ctx context.Context, name string) (*models.ValueStoreConfig, *models.StoreStatus, error) {
	config, err := s.configRepo.GetByName(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	var status *models.StoreStatus
	if st, ok := s.registry.Get(name); ok {
		snapshot := st.Status()
		status = &snapshot
	}

	return config, status, nil
}

func (s *valueStoreService) List(ctx context.Context) ([]*models.ValueStoreConfig, error) {
	return s.configRepo.List(ctx)
}

func (s *valueStoreService) Delete(ctx context.Context, name string) error {
	if err := s.configRepo.Delete(ctx, name); err != nil {
		return err
	}

	// The ledger rows are meaningless without the config; drop them too.
	if err := s.confirmationRepo.DeleteByStore(ctx, name); err != nil {
		s.logger.Error("Failed to delete confirmations", zap.String("store", name), zap.Error(err))
	}
	if err := s.learnedRepo.DeleteByStore(ctx, name); err != nil {
		s.logger.Error("Failed to delete learned terms", zap.String("store", name), zap.Error(err))
	}

	s.registry.Delete(name)
	if s.scheduler != nil {
		s.scheduler.ConfigDeleted(name)
	}

	s.logger.Info("Value store deleted", zap.String("store", name))
	return nil
}

func validateConfig(config *models.ValueStoreConfig) error {
	if config.Name == "" {
		return fmt.Errorf("store name is required")
	}
	if len(config.EntityTypes) == 0 {
		return fmt.Errorf("at least one entity type is required")
	}
	if len(config.MatchColumns) == 0 {
		return fmt.Errorf("at least one match column is required")
	}
	srcType, _ := config.SourceConnection["type"].(string)
	if srcType == "" {
		return fmt.Errorf("source connection type is required")
	}
	if injection := enginesql.CheckTermForInjection(config.Name); injection != nil {
		return fmt.Errorf("store name contains SQL injection pattern (fingerprint %s)", injection.Fingerprint)
	}
	return nil
}

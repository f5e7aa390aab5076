package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/alx-report/report-api/internal/dto"
	"github.com/alx-report/report-api/internal/models"
	appErrors "github.com/alx-report/report-api/pkg/errors"
)

type settingsRepository interface {
	GetAll(ctx context.Context, companyID int64) ([]models.CompanySetting, error)
	Get(ctx context.Context, companyID int64, name string) (string, bool, error)
	Upsert(ctx context.Context, companyID int64, name, value string, now int64) error
	UpsertMany(ctx context.Context, companyID int64, settings map[string]string, now int64) error
	DeleteAll(ctx context.Context, companyID int64) error
	Exists(ctx context.Context, companyID int64) (bool, error)
}

// SettingsService loads and mutates per-company configuration.
type SettingsService struct {
	repo      settingsRepository
	validator *validator.Validate
	logger    *zap.Logger

	defaultCacheTTLMinutes int
}

// NewSettingsService constructs a settings service.
func NewSettingsService(repo settingsRepository, validate *validator.Validate, logger *zap.Logger, defaultCacheTTL time.Duration) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ttlMinutes := int(defaultCacheTTL.Minutes())
	if ttlMinutes <= 0 {
		ttlMinutes = 30
	}
	return &SettingsService{repo: repo, validator: validate, logger: logger, defaultCacheTTLMinutes: ttlMinutes}
}

// Load builds the typed settings view for a company. Absent rows fall back
// to the defaults: every field visible, no course restriction, auto mode
// with a 24h window, caching on.
func (s *SettingsService) Load(ctx context.Context, companyID int64) (*models.CompanySettings, error) {
	rows, err := s.repo.GetAll(ctx, companyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load company settings")
	}

	settings := &models.CompanySettings{
		CompanyID:       companyID,
		Fields:          make(map[string]bool, len(models.ProgressFieldNames)),
		EnabledCourses:  make(map[int64]bool),
		SyncMode:        models.SyncModeAuto,
		SyncWindowHours: 24,
		FirstSyncHours:  0,
		CacheEnabled:    true,
		CacheTTLMinutes: s.defaultCacheTTLMinutes,
	}
	for _, name := range models.ProgressFieldNames {
		settings.Fields[name] = true
	}

	for _, row := range rows {
		switch {
		case strings.HasPrefix(row.SettingName, models.SettingPrefixField):
			name := strings.TrimPrefix(row.SettingName, models.SettingPrefixField)
			if _, ok := settings.Fields[name]; ok {
				settings.Fields[name] = row.SettingValue == "1"
			}
		case strings.HasPrefix(row.SettingName, models.SettingPrefixCourse):
			raw := strings.TrimPrefix(row.SettingName, models.SettingPrefixCourse)
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				continue
			}
			settings.HasCourseSettings = true
			settings.EnabledCourses[id] = row.SettingValue == "1"
		case row.SettingName == models.SettingSyncMode:
			settings.SyncMode = models.SyncMode(row.SettingValue)
		case row.SettingName == models.SettingSyncWindowHours:
			if n, err := strconv.Atoi(row.SettingValue); err == nil && n > 0 {
				settings.SyncWindowHours = n
			}
		case row.SettingName == models.SettingFirstSyncHours:
			if n, err := strconv.Atoi(row.SettingValue); err == nil && n >= 0 {
				settings.FirstSyncHours = n
			}
		case row.SettingName == models.SettingCacheEnabled:
			settings.CacheEnabled = row.SettingValue == "1"
		case row.SettingName == models.SettingCacheTTLMinutes:
			if n, err := strconv.Atoi(row.SettingValue); err == nil && n > 0 {
				settings.CacheTTLMinutes = n
			}
		}
	}

	return settings, nil
}

// List returns the raw key-value rows for the admin surface.
func (s *SettingsService) List(ctx context.Context, companyID int64) ([]dto.SettingItem, error) {
	rows, err := s.repo.GetAll(ctx, companyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load company settings")
	}
	items := make([]dto.SettingItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.SettingItem{Name: row.SettingName, Value: row.SettingValue})
	}
	return items, nil
}

// Update validates and upserts a batch of settings. Unknown keys and
// malformed values reject the whole batch.
func (s *SettingsService) Update(ctx context.Context, companyID int64, req dto.UpdateSettingsRequest, now time.Time) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settings payload")
	}
	for name, value := range req.Settings {
		if err := validateSetting(name, value); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
	}
	if err := s.repo.UpsertMany(ctx, companyID, req.Settings, now.Unix()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save company settings")
	}
	return nil
}

// Copy replaces the target company's settings with the source company's.
func (s *SettingsService) Copy(ctx context.Context, fromCompanyID, toCompanyID int64, now time.Time) (int, error) {
	if fromCompanyID == toCompanyID {
		return 0, appErrors.Clone(appErrors.ErrValidation, "source and target companies are the same")
	}
	rows, err := s.repo.GetAll(ctx, fromCompanyID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load source settings")
	}
	if err := s.repo.DeleteAll(ctx, toCompanyID); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear target settings")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	batch := make(map[string]string, len(rows))
	for _, row := range rows {
		batch[row.SettingName] = row.SettingValue
	}
	if err := s.repo.UpsertMany(ctx, toCompanyID, batch, now.Unix()); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save target settings")
	}
	return len(batch), nil
}

func validateSetting(name, value string) error {
	switch {
	case strings.HasPrefix(name, models.SettingPrefixField):
		field := strings.TrimPrefix(name, models.SettingPrefixField)
		for _, known := range models.ProgressFieldNames {
			if field == known {
				return validateBoolValue(name, value)
			}
		}
		return fmt.Errorf("unknown field setting %q", name)
	case strings.HasPrefix(name, models.SettingPrefixCourse):
		raw := strings.TrimPrefix(name, models.SettingPrefixCourse)
		if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
			return fmt.Errorf("invalid course setting %q", name)
		}
		return validateBoolValue(name, value)
	case name == models.SettingSyncMode:
		switch models.SyncMode(value) {
		case models.SyncModeAuto, models.SyncModeIncremental, models.SyncModeFull, models.SyncModeDisabled:
			return nil
		}
		return fmt.Errorf("invalid sync mode %q", value)
	case name == models.SettingSyncWindowHours, name == models.SettingCacheTTLMinutes:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("setting %q requires a positive integer", name)
		}
		return nil
	case name == models.SettingFirstSyncHours:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("setting %q requires a non-negative integer", name)
		}
		return nil
	case name == models.SettingCacheEnabled:
		return validateBoolValue(name, value)
	}
	return fmt.Errorf("unknown setting %q", name)
}

func validateBoolValue(name, value string) error {
	if value != "0" && value != "1" {
		return fmt.Errorf("setting %q requires \"0\" or \"1\"", name)
	}
	return nil
}

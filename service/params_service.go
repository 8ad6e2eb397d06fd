package service

import (
	"context"
	"fmt"
	"strings"

	"kzcasino/events"
	"kzcasino/models"

	log "github.com/sirupsen/logrus"
)

type paramsService struct {
	uowFactory  UnitOfWorkFactory
	definitions []models.ParamDefinition
	byName      map[string]models.ParamDefinition
}

// NewParamsService creates a parameter store over the given definitions
func NewParamsService(uowFactory UnitOfWorkFactory, definitions []models.ParamDefinition) ParamsService {
	byName := make(map[string]models.ParamDefinition, len(definitions))
	for _, def := range definitions {
		byName[def.Name] = def
	}
	return &paramsService{
		uowFactory:  uowFactory,
		definitions: definitions,
		byName:      byName,
	}
}

func (s *paramsService) definition(name string) (models.ParamDefinition, error) {
	def, ok := s.byName[strings.TrimSpace(name)]
	if !ok {
		return models.ParamDefinition{}, validationError("unknown parameter %q", name)
	}
	return def, nil
}

// Get returns the effective value of a parameter
func (s *paramsService) Get(ctx context.Context, name string) (models.ParamValue, error) {
	def, err := s.definition(name)
	if err != nil {
		return models.ParamValue{}, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return models.ParamValue{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	override, err := uow.SettingRepository().Get(ctx, settingKey(def.Name))
	if err != nil {
		return models.ParamValue{}, fmt.Errorf("failed to get parameter override: %w", err)
	}

	return EffectiveValue(def, override), nil
}

// Set validates and stores a live override
func (s *paramsService) Set(ctx context.Context, name, raw string) (models.ParamValue, error) {
	def, err := s.definition(name)
	if err != nil {
		return models.ParamValue{}, err
	}

	value, err := def.Parse(raw)
	if err != nil {
		return models.ParamValue{}, &Error{Kind: KindValidation, Msg: fmt.Sprintf("invalid value for %s", def.Name), Err: err}
	}
	if !def.InBounds(value) {
		return models.ParamValue{}, validationError("invalid value for %s: must be between %v and %v", def.Name, def.Min, def.Max)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return models.ParamValue{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.SettingRepository().Set(ctx, settingKey(def.Name), value.String()); err != nil {
		return models.ParamValue{}, fmt.Errorf("failed to store parameter override: %w", err)
	}

	uow.EventBus().Publish(events.ParamChangedEvent{
		Name:  def.Name,
		Value: value.String(),
	})

	if err := uow.Commit(); err != nil {
		return models.ParamValue{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"param": def.Name,
		"value": value.String(),
	}).Info("Parameter override set")

	return value, nil
}

// Reset removes the override of one parameter
func (s *paramsService) Reset(ctx context.Context, name string) error {
	def, err := s.definition(name)
	if err != nil {
		return err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	removed, err := uow.SettingRepository().Delete(ctx, settingKey(def.Name))
	if err != nil {
		return fmt.Errorf("failed to delete parameter override: %w", err)
	}

	if removed {
		uow.EventBus().Publish(events.ParamChangedEvent{
			Name:  def.Name,
			Value: def.DefaultValue().String(),
			Reset: true,
		})
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"param":   def.Name,
		"removed": removed,
	}).Info("Parameter override reset")

	return nil
}

// ResetAll removes every override
func (s *paramsService) ResetAll(ctx context.Context) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	removed, err := uow.SettingRepository().DeleteByPrefix(ctx, settingKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to delete parameter overrides: %w", err)
	}

	uow.EventBus().Publish(events.ParamChangedEvent{
		Reset:    true,
		ResetAll: true,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithField("removed", removed).Info("All parameter overrides reset")
	return nil
}

// List returns every parameter with its effective value
func (s *paramsService) List(ctx context.Context) ([]*models.ParamState, error) {
	overrides, err := s.overrides(ctx)
	if err != nil {
		return nil, err
	}

	states := make([]*models.ParamState, 0, len(s.definitions))
	for _, def := range s.definitions {
		var override *string
		overridden := false
		if raw, ok := overrides[def.Name]; ok {
			override = &raw
			if v, err := def.Parse(raw); err == nil && def.InBounds(v) {
				overridden = true
			}
		}
		states = append(states, &models.ParamState{
			Definition: def,
			Value:      EffectiveValue(def, override).String(),
			Overridden: overridden,
		})
	}
	return states, nil
}

// Snapshot resolves every parameter in one read
func (s *paramsService) Snapshot(ctx context.Context) (*Params, error) {
	overrides, err := s.overrides(ctx)
	if err != nil {
		return nil, err
	}
	return ResolveParams(s.definitions, overrides), nil
}

// overrides returns raw override values keyed by parameter name
func (s *paramsService) overrides(ctx context.Context) (map[string]string, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	stored, err := uow.SettingRepository().GetByPrefix(ctx, settingKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get parameter overrides: %w", err)
	}

	overrides := make(map[string]string, len(stored))
	for key, value := range stored {
		overrides[strings.TrimPrefix(key, settingKeyPrefix)] = value
	}
	return overrides, nil
}

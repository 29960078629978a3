// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-json-experiment/json"
	"gorm.io/gorm"

	"github.com/switchboard-ai/switchboard"
)

// taskRecord is the database row backing one task. The task body and push
// config are stored as serialized JSON columns so the schema does not chase
// the protocol types.
type taskRecord struct {
	ID         string `gorm:"primaryKey"`
	SessionID  string `gorm:"index"`
	State      string `gorm:"index"`
	Payload    []byte
	PushConfig []byte
	UpdatedAt  time.Time
}

// GormTaskStore is a TaskStore persisted through GORM. Single-task updates
// run inside a transaction with a row lock so that a status plus artifact
// commit is atomic.
type GormTaskStore struct {
	db        *gorm.DB
	tableName string
}

var _ TaskStore = (*GormTaskStore)(nil)

// GormTaskStoreConfig holds configuration for GormTaskStore.
type GormTaskStoreConfig struct {
	DB        *gorm.DB
	TableName string // Optional, defaults to "tasks"
	Migrate   bool   // Whether to create the table if it doesn't exist
}

// NewGormTaskStore creates a new [GormTaskStore].
func NewGormTaskStore(config GormTaskStoreConfig) (*GormTaskStore, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}

	tableName := config.TableName
	if tableName == "" {
		tableName = "tasks"
	}

	s := &GormTaskStore{
		db:        config.DB,
		tableName: tableName,
	}
	if config.Migrate {
		if err := config.DB.Table(tableName).AutoMigrate(&taskRecord{}); err != nil {
			return nil, fmt.Errorf("failed to migrate task table: %w", err)
		}
	}
	return s, nil
}

func (s *GormTaskStore) table(tx *gorm.DB) *gorm.DB {
	return tx.Table(s.tableName)
}

func (s *GormTaskStore) load(tx *gorm.DB, id string) (*taskRecord, *switchboard.Task, error) {
	var record taskRecord
	if err := s.table(tx).Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrTaskNotFound
		}
		return nil, nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}
	var task switchboard.Task
	if err := json.Unmarshal(record.Payload, &task); err != nil {
		return nil, nil, fmt.Errorf("failed to decode task %s: %w", id, err)
	}
	return &record, &task, nil
}

func (s *GormTaskStore) save(tx *gorm.DB, record *taskRecord, task *switchboard.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", task.ID, err)
	}
	record.Payload = payload
	record.SessionID = task.SessionID
	record.State = string(task.Status.State)
	record.UpdatedAt = time.Now().UTC()
	if err := s.table(tx).Save(record).Error; err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}
	return nil
}

// Get implements [TaskStore].
func (s *GormTaskStore) Get(ctx context.Context, id string) (*switchboard.Task, error) {
	_, task, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Upsert implements [TaskStore].
func (s *GormTaskStore) Upsert(ctx context.Context, id, sessionID string, message switchboard.Message) (*switchboard.Task, error) {
	var out *switchboard.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, task, err := s.load(tx, id)
		if errors.Is(err, ErrTaskNotFound) {
			record = &taskRecord{ID: id}
			task = &switchboard.Task{
				ID:        id,
				SessionID: sessionID,
				Status: switchboard.TaskStatus{
					State:     switchboard.TaskStateSubmitted,
					Timestamp: time.Now().UTC(),
				},
			}
		} else if err != nil {
			return err
		} else if task.Status.State.Terminal() {
			return fmt.Errorf("%w: task %s is %s", ErrInvalidTransition, id, task.Status.State)
		}
		task.History = append(task.History, message)
		if err := s.save(tx, record, task); err != nil {
			return err
		}
		out = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update implements [TaskStore].
func (s *GormTaskStore) Update(ctx context.Context, id string, status switchboard.TaskStatus, artifacts []switchboard.Artifact) (*switchboard.Task, error) {
	var out *switchboard.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, task, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if !task.Status.State.CanTransitionTo(status.State) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, task.Status.State, status.State)
		}
		if status.Timestamp.IsZero() {
			status.Timestamp = time.Now().UTC()
		}
		if status.Message != nil {
			task.History = append(task.History, *status.Message)
		}
		task.Status = status
		task.Artifacts = append(task.Artifacts, artifacts...)
		if err := s.save(tx, record, task); err != nil {
			return err
		}
		out = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetPushConfig implements [TaskStore].
func (s *GormTaskStore) SetPushConfig(ctx context.Context, id string, config switchboard.PushNotificationConfig) error {
	encoded, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode push config for task %s: %w", id, err)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, _, err := s.load(tx, id)
		if err != nil {
			return err
		}
		record.PushConfig = encoded
		record.UpdatedAt = time.Now().UTC()
		if err := s.table(tx).Save(record).Error; err != nil {
			return fmt.Errorf("failed to save push config for task %s: %w", id, err)
		}
		return nil
	})
}

// GetPushConfig implements [TaskStore].
func (s *GormTaskStore) GetPushConfig(ctx context.Context, id string) (*switchboard.PushNotificationConfig, error) {
	record, _, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if len(record.PushConfig) == 0 {
		return nil, ErrPushConfigNotFound
	}
	var config switchboard.PushNotificationConfig
	if err := json.Unmarshal(record.PushConfig, &config); err != nil {
		return nil, fmt.Errorf("failed to decode push config for task %s: %w", id, err)
	}
	return &config, nil
}

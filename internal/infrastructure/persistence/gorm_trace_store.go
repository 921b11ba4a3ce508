package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"github.com/oisp/sensor/internal/domain/repository"
	"github.com/oisp/sensor/internal/domain/trace"
	"github.com/oisp/sensor/internal/infrastructure/persistence/models"
	domainErrors "github.com/oisp/sensor/pkg/errors"
)

// GormTraceStore is the gorm-backed TraceStore, used when trace.persist is
// enabled; dialector (sqlite by default, postgres for parity) is chosen by
// NewDBConnection.
type GormTraceStore struct {
	db *gorm.DB
}

func NewGormTraceStore(db *gorm.DB) repository.TraceStore {
	return &GormTraceStore{db: db}
}

func (s *GormTraceStore) Save(ctx context.Context, t *trace.AgentTrace) error {
	model, err := s.toModel(t)
	if err != nil {
		return domainErrors.NewInternalError("failed to encode trace: " + err.Error())
	}
	if err := s.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save trace: " + err.Error())
	}
	return nil
}

func (s *GormTraceStore) FindByTraceID(ctx context.Context, traceID string) (*trace.AgentTrace, error) {
	var model models.TraceModel
	if err := s.db.WithContext(ctx).First(&model, "trace_id = ?", traceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("trace not found")
		}
		return nil, domainErrors.NewInternalError("failed to find trace: " + err.Error())
	}
	return s.toDomain(&model)
}

func (s *GormTraceStore) Query(ctx context.Context, filter repository.TraceFilter) ([]*trace.AgentTrace, error) {
	q := s.db.WithContext(ctx).Order("start desc")
	if filter.PID != 0 {
		q = q.Where("pid = ?", filter.PID)
	}
	if filter.ProcessName != "" {
		q = q.Where("process_name = ?", filter.ProcessName)
	}
	if filter.CompletedOnly {
		q = q.Where("completed = ?", true)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var modelList []models.TraceModel
	if err := q.Find(&modelList).Error; err != nil {
		return nil, domainErrors.NewInternalError("failed to query traces: " + err.Error())
	}

	traces := make([]*trace.AgentTrace, 0, len(modelList))
	for i := range modelList {
		t, err := s.toDomain(&modelList[i])
		if err != nil {
			return nil, err
		}
		traces = append(traces, t)
	}
	return traces, nil
}

func (s *GormTraceStore) Delete(ctx context.Context, traceID string) error {
	result := s.db.WithContext(ctx).Delete(&models.TraceModel{}, "trace_id = ?", traceID)
	if result.Error != nil {
		return domainErrors.NewInternalError("failed to delete trace: " + result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("trace not found")
	}
	return nil
}

func (s *GormTraceStore) toModel(t *trace.AgentTrace) (*models.TraceModel, error) {
	spansJSON, err := json.Marshal(t.Spans)
	if err != nil {
		return nil, err
	}
	filesAccessedJSON, err := json.Marshal(t.FilesAccessed)
	if err != nil {
		return nil, err
	}
	filesModifiedJSON, err := json.Marshal(t.FilesModified)
	if err != nil {
		return nil, err
	}
	spawnedJSON, err := json.Marshal(t.SpawnedProcesses)
	if err != nil {
		return nil, err
	}
	connJSON, err := json.Marshal(t.Connections)
	if err != nil {
		return nil, err
	}

	return &models.TraceModel{
		TraceID:               t.TraceID,
		PID:                   t.PID,
		ProcessName:           t.Name,
		Exe:                   t.Exe,
		Start:                 t.Start,
		End:                   t.End,
		TotalPromptTokens:     t.TotalPromptTokens,
		TotalCompletionTokens: t.TotalCompletionTokens,
		TotalTokens:           t.TotalTokens,
		CostUSD:               t.CostUSD,
		LlmCallCount:          t.LlmCallCount,
		ToolCallCount:         t.ToolCallCount,
		Completed:             t.Completed,
		Summary:               t.Summary,
		SpansJSON:             string(spansJSON),
		FilesAccessedJSON:     string(filesAccessedJSON),
		FilesModifiedJSON:     string(filesModifiedJSON),
		SpawnedProcessesJSON:  string(spawnedJSON),
		ConnectionsJSON:       string(connJSON),
	}, nil
}

func (s *GormTraceStore) toDomain(model *models.TraceModel) (*trace.AgentTrace, error) {
	t := &trace.AgentTrace{
		TraceID:               model.TraceID,
		PID:                   model.PID,
		Name:                  model.ProcessName,
		Exe:                   model.Exe,
		Start:                 model.Start,
		End:                   model.End,
		TotalPromptTokens:     model.TotalPromptTokens,
		TotalCompletionTokens: model.TotalCompletionTokens,
		TotalTokens:           model.TotalTokens,
		CostUSD:               model.CostUSD,
		LlmCallCount:          model.LlmCallCount,
		ToolCallCount:         model.ToolCallCount,
		Completed:             model.Completed,
		Summary:               model.Summary,
	}

	if model.SpansJSON != "" {
		if err := json.Unmarshal([]byte(model.SpansJSON), &t.Spans); err != nil {
			return nil, domainErrors.NewInternalError("failed to decode spans: " + err.Error())
		}
	}
	if model.FilesAccessedJSON != "" {
		_ = json.Unmarshal([]byte(model.FilesAccessedJSON), &t.FilesAccessed)
	}
	if model.FilesModifiedJSON != "" {
		_ = json.Unmarshal([]byte(model.FilesModifiedJSON), &t.FilesModified)
	}
	if model.SpawnedProcessesJSON != "" {
		_ = json.Unmarshal([]byte(model.SpawnedProcessesJSON), &t.SpawnedProcesses)
	}
	if model.ConnectionsJSON != "" {
		_ = json.Unmarshal([]byte(model.ConnectionsJSON), &t.Connections)
	}
	if len(t.Spans) > 0 {
		t.RootSpanID = t.Spans[0].ID
	}

	return t, nil
}

package mapper

import (
	"encoding/json"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/model"

	"gorm.io/datatypes"
)

type DebugRunMapper struct{}

func NewDebugRunMapper() *DebugRunMapper {
	return &DebugRunMapper{}
}

func (m *DebugRunMapper) ToEntity(r *model.DebugRun) (*entity.DebugRun, error) {
	if r == nil {
		return nil, nil
	}

	var history []entity.ConversationMessage
	if len(r.History) > 0 {
		if err := json.Unmarshal(r.History, &history); err != nil {
			return nil, err
		}
	}
	var actions []string
	if len(r.EnabledActions) > 0 {
		if err := json.Unmarshal(r.EnabledActions, &actions); err != nil {
			return nil, err
		}
	}

	return &entity.DebugRun{
		Id:             r.Id,
		TraceId:        r.TraceId,
		TargetUserId:   r.TargetUserId,
		ConversationId: r.ConversationId,
		Entrypoint:     r.Entrypoint,
		Message:        r.Message,
		History:        history,
		EnabledActions: actions,
		Status:         r.Status,
		StoppedAtStage: r.StoppedAtStage,
		Error:          r.Error,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func (m *DebugRunMapper) ToModel(r *entity.DebugRun) (*model.DebugRun, error) {
	if r == nil {
		return nil, nil
	}

	history, err := json.Marshal(r.History)
	if err != nil {
		return nil, err
	}
	actions, err := json.Marshal(r.EnabledActions)
	if err != nil {
		return nil, err
	}

	return &model.DebugRun{
		Id:             r.Id,
		TraceId:        r.TraceId,
		TargetUserId:   r.TargetUserId,
		ConversationId: r.ConversationId,
		Entrypoint:     r.Entrypoint,
		Message:        r.Message,
		History:        datatypes.JSON(history),
		EnabledActions: datatypes.JSON(actions),
		Status:         r.Status,
		StoppedAtStage: r.StoppedAtStage,
		Error:          r.Error,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func (m *DebugRunMapper) ArtifactToEntity(a *model.PipelineArtifact) *entity.PipelineArtifact {
	if a == nil {
		return nil
	}
	return &entity.PipelineArtifact{
		Id:        a.Id,
		RunId:     a.RunId,
		Stage:     a.Stage,
		Payload:   json.RawMessage(a.Payload),
		CreatedAt: a.CreatedAt,
	}
}

func (m *DebugRunMapper) ArtifactToModel(a *entity.PipelineArtifact) *model.PipelineArtifact {
	if a == nil {
		return nil
	}
	return &model.PipelineArtifact{
		Id:        a.Id,
		RunId:     a.RunId,
		Stage:     a.Stage,
		Payload:   datatypes.JSON(a.Payload),
		CreatedAt: a.CreatedAt,
	}
}

func (m *DebugRunMapper) SessionLogToModel(l *entity.GuideSessionLog) (*model.GuideSessionLog, error) {
	if l == nil {
		return nil, nil
	}
	drops, err := json.Marshal(l.Drops)
	if err != nil {
		return nil, err
	}
	return &model.GuideSessionLog{
		Id:             l.Id,
		UserId:         l.UserId,
		ConversationId: l.ConversationId,
		Entrypoint:     l.Entrypoint,
		TraceId:        l.TraceId,
		Accepted:       l.Accepted,
		Drops:          datatypes.JSON(drops),
		SyntheticDone:  l.SyntheticDone,
		DurationMs:     l.DurationMs,
		Error:          l.Error,
		CreatedAt:      l.CreatedAt,
	}, nil
}

func (m *DebugRunMapper) SessionLogToEntity(l *model.GuideSessionLog) (*entity.GuideSessionLog, error) {
	if l == nil {
		return nil, nil
	}
	drops := map[string]int{}
	if len(l.Drops) > 0 {
		if err := json.Unmarshal(l.Drops, &drops); err != nil {
			return nil, err
		}
	}
	return &entity.GuideSessionLog{
		Id:             l.Id,
		UserId:         l.UserId,
		ConversationId: l.ConversationId,
		Entrypoint:     l.Entrypoint,
		TraceId:        l.TraceId,
		Accepted:       l.Accepted,
		Drops:          drops,
		SyntheticDone:  l.SyntheticDone,
		DurationMs:     l.DurationMs,
		Error:          l.Error,
		CreatedAt:      l.CreatedAt,
	}, nil
}

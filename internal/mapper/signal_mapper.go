package mapper

import (
	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/model"
)

// SignalMapper maps the read-only signal tables consumed by the candidate fetchers.
type SignalMapper struct{}

func NewSignalMapper() *SignalMapper {
	return &SignalMapper{}
}

func (m *SignalMapper) LifeContextToEntity(l *model.LifeContext) *entity.LifeContext {
	if l == nil {
		return nil
	}
	return &entity.LifeContext{
		Id:        l.Id,
		UserId:    l.UserId,
		Kind:      l.Kind,
		Title:     l.Title,
		Content:   l.Content,
		CreatedAt: l.CreatedAt,
		UpdatedAt: optionalTime(l.UpdatedAt),
	}
}

func (m *SignalMapper) LifeContextToModel(l *entity.LifeContext) *model.LifeContext {
	if l == nil {
		return nil
	}
	return &model.LifeContext{
		Id:        l.Id,
		UserId:    l.UserId,
		Kind:      l.Kind,
		Title:     l.Title,
		Content:   l.Content,
		CreatedAt: l.CreatedAt,
		UpdatedAt: valueTime(l.UpdatedAt),
	}
}

func (m *SignalMapper) ReadingSessionToEntity(r *model.ReadingSession) *entity.ReadingSession {
	if r == nil {
		return nil
	}
	return &entity.ReadingSession{
		Id:              r.Id,
		UserId:          r.UserId,
		RefKey:          r.RefKey,
		Progress:        r.Progress,
		DurationSeconds: r.DurationSeconds,
		StartedAt:       r.StartedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       optionalTime(r.UpdatedAt),
	}
}

func (m *SignalMapper) ReadingSessionToModel(r *entity.ReadingSession) *model.ReadingSession {
	if r == nil {
		return nil
	}
	return &model.ReadingSession{
		Id:              r.Id,
		UserId:          r.UserId,
		RefKey:          r.RefKey,
		Progress:        r.Progress,
		DurationSeconds: r.DurationSeconds,
		StartedAt:       r.StartedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       valueTime(r.UpdatedAt),
	}
}

func (m *SignalMapper) HighlightToEntity(h *model.VerseHighlight) *entity.VerseHighlight {
	if h == nil {
		return nil
	}
	return &entity.VerseHighlight{
		Id:        h.Id,
		UserId:    h.UserId,
		RefKey:    h.RefKey,
		Color:     h.Color,
		VerseText: h.VerseText,
		CreatedAt: h.CreatedAt,
		UpdatedAt: optionalTime(h.UpdatedAt),
	}
}

func (m *SignalMapper) HighlightToModel(h *entity.VerseHighlight) *model.VerseHighlight {
	if h == nil {
		return nil
	}
	return &model.VerseHighlight{
		Id:        h.Id,
		UserId:    h.UserId,
		RefKey:    h.RefKey,
		Color:     h.Color,
		VerseText: h.VerseText,
		CreatedAt: h.CreatedAt,
		UpdatedAt: valueTime(h.UpdatedAt),
	}
}

func (m *SignalMapper) ProfileToEntity(p *model.UserProfile) *entity.UserProfile {
	if p == nil {
		return nil
	}
	return &entity.UserProfile{
		UserId:               p.UserId,
		DisplayName:          p.DisplayName,
		Language:             p.Language,
		PreferredTranslation: p.PreferredTranslation,
		Tradition:            p.Tradition,
		Goals:                p.Goals,
		UpdatedAt:            optionalTime(p.UpdatedAt),
	}
}

func (m *SignalMapper) ProfileToModel(p *entity.UserProfile) *model.UserProfile {
	if p == nil {
		return nil
	}
	return &model.UserProfile{
		UserId:               p.UserId,
		DisplayName:          p.DisplayName,
		Language:             p.Language,
		PreferredTranslation: p.PreferredTranslation,
		Tradition:            p.Tradition,
		Goals:                p.Goals,
		UpdatedAt:            valueTime(p.UpdatedAt),
	}
}

package mapper

import (
	"subscription-mailer-be/internal/dto"
	"subscription-mailer-be/internal/entity"
	"subscription-mailer-be/internal/model"
)

type SubscriptionRecordMapper struct{}

func NewSubscriptionRecordMapper() *SubscriptionRecordMapper {
	return &SubscriptionRecordMapper{}
}

func (m *SubscriptionRecordMapper) ToEntity(r *model.SubscriptionRecord) *entity.SubscriptionRecord {
	if r == nil {
		return nil
	}
	return &entity.SubscriptionRecord{
		Source:                entity.ObservationSource(r.Source),
		Email:                 r.Email,
		CustomerId:            r.CustomerId,
		SubscriptionId:        r.SubscriptionId,
		Status:                entity.SubscriptionStatus(r.Status),
		SubscriptionStartDate: valueOf(r.SubscriptionStartDate),
		CurrentPeriodStart:    valueOf(r.CurrentPeriodStart),
		CurrentPeriodEnd:      valueOf(r.CurrentPeriodEnd),
		PlanId:                r.PlanId,
		PlanAmount:            r.PlanAmount,
		Currency:              r.Currency,
		PlanNickname:          r.PlanNickname,
		Duration:              r.Duration,
		EmailSentAt:           r.EmailSentAt,
		CreatedAt:             r.CreatedAt,
		IsCancelled:           r.IsCancelled,
	}
}

func (m *SubscriptionRecordMapper) ToEntities(records []*model.SubscriptionRecord) []*entity.SubscriptionRecord {
	entities := make([]*entity.SubscriptionRecord, len(records))
	for i, r := range records {
		entities[i] = m.ToEntity(r)
	}
	return entities
}

func (m *SubscriptionRecordMapper) ToModel(r *entity.SubscriptionRecord) *model.SubscriptionRecord {
	if r == nil {
		return nil
	}
	return &model.SubscriptionRecord{
		Source:                string(r.Source),
		Email:                 r.Email,
		CustomerId:            r.CustomerId,
		SubscriptionId:        r.SubscriptionId,
		Status:                string(r.Status),
		SubscriptionStartDate: optional(r.SubscriptionStartDate),
		CurrentPeriodStart:    optional(r.CurrentPeriodStart),
		CurrentPeriodEnd:      optional(r.CurrentPeriodEnd),
		PlanId:                r.PlanId,
		PlanAmount:            r.PlanAmount,
		Currency:              r.Currency,
		PlanNickname:          r.PlanNickname,
		Duration:              r.Duration,
		IsCancelled:           r.IsCancelled,
		EmailSentAt:           r.EmailSentAt,
		CreatedAt:             r.CreatedAt,
	}
}

// ToResponse flattens a record for the admin API. Empty dates become nil so
// the JSON shape matches the on-disk log.
func (m *SubscriptionRecordMapper) ToResponse(r *entity.SubscriptionRecord) *dto.SubscriptionRecordResponse {
	if r == nil {
		return nil
	}
	return &dto.SubscriptionRecordResponse{
		Source:                string(r.Source),
		Email:                 r.Email,
		CustomerId:            r.CustomerId,
		SubscriptionId:        r.SubscriptionId,
		Status:                string(r.Status),
		SubscriptionStartDate: optional(r.SubscriptionStartDate),
		CurrentPeriodStart:    optional(r.CurrentPeriodStart),
		CurrentPeriodEnd:      optional(r.CurrentPeriodEnd),
		PlanId:                r.PlanId,
		PlanAmount:            r.PlanAmount,
		Currency:              r.Currency,
		PlanNickname:          r.PlanNickname,
		Duration:              r.Duration,
		EmailSentAt:           r.EmailSentAt,
		CreatedAt:             r.CreatedAt,
		IsCancelled:           r.IsCancelled,
	}
}

func (m *SubscriptionRecordMapper) ToResponses(records []*entity.SubscriptionRecord) []*dto.SubscriptionRecordResponse {
	out := make([]*dto.SubscriptionRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, m.ToResponse(r))
	}
	return out
}

func (m *SubscriptionRecordMapper) ObservationFromRequest(req *dto.ObservationRequest) *entity.Observation {
	if req == nil {
		return nil
	}
	source := entity.ObservationSource(req.Source)
	if source == "" {
		source = entity.SourceManual
	}
	return &entity.Observation{
		Source:                source,
		Email:                 req.Email,
		CustomerId:            req.CustomerId,
		SubscriptionId:        req.SubscriptionId,
		Status:                entity.SubscriptionStatus(req.Status),
		SubscriptionStartDate: req.SubscriptionStartDate,
		CurrentPeriodStart:    req.CurrentPeriodStart,
		CurrentPeriodEnd:      req.CurrentPeriodEnd,
		PlanId:                req.PlanId,
		PlanAmount:            req.PlanAmount,
		Currency:              req.Currency,
		PlanNickname:          req.PlanNickname,
	}
}

func (m *SubscriptionRecordMapper) SnapshotFromRequest(req *dto.ReconcileRequest) []*entity.Observation {
	out := make([]*entity.Observation, 0, len(req.Subscriptions))
	for _, e := range req.Subscriptions {
		out = append(out, &entity.Observation{
			Source:         entity.SourceManual,
			Email:          e.Email,
			SubscriptionId: e.SubscriptionId,
			Status:         entity.SubscriptionStatus(e.Status),
		})
	}
	return out
}

func (m *SubscriptionRecordMapper) ToStatsResponse(s *entity.SubscriptionStats) *dto.SubscriptionStatsResponse {
	if s == nil {
		return nil
	}
	return &dto.SubscriptionStatsResponse{
		TotalSubscriptions:  s.TotalSubscriptions,
		TotalEmailsSent:     s.TotalEmailsSent,
		ActiveSubscriptions: s.ActiveSubscriptions,
		UniqueCustomers:     s.UniqueCustomers,
		ByPlan:              s.ByPlan,
	}
}

func (m *SubscriptionRecordMapper) ToReconcileResponse(r *entity.ReconcileResult) *dto.ReconcileResponse {
	if r == nil {
		return nil
	}
	cancelled := make([]dto.RecordKeyResponse, 0, len(r.Cancelled))
	for _, k := range r.Cancelled {
		cancelled = append(cancelled, dto.RecordKeyResponse{Email: k.Email, SubscriptionId: k.SubscriptionId})
	}
	return &dto.ReconcileResponse{
		SnapshotSize:     r.SnapshotSize,
		Checked:          r.Checked,
		AlreadyCancelled: r.AlreadyCancelled,
		Cancelled:        cancelled,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func valueOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (m *SubscriptionRecordMapper) ToObservationRequest(o *entity.Observation) *dto.ObservationRequest {
	if o == nil {
		return nil
	}
	return &dto.ObservationRequest{
		Source:                string(o.Source),
		Email:                 o.Email,
		CustomerId:            o.CustomerId,
		SubscriptionId:        o.SubscriptionId,
		Status:                string(o.Status),
		SubscriptionStartDate: o.SubscriptionStartDate,
		CurrentPeriodStart:    o.CurrentPeriodStart,
		CurrentPeriodEnd:      o.CurrentPeriodEnd,
		PlanId:                o.PlanId,
		PlanAmount:            o.PlanAmount,
		Currency:              o.Currency,
		PlanNickname:          o.PlanNickname,
	}
}

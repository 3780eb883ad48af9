package service

import (
	"github.com/mmynk/syndicate/internal/models"
	"github.com/mmynk/syndicate/pkg/api"
)

func toAPIPayment(p *models.Payment) api.Payment {
	out := api.Payment{
		Index:          p.Index,
		Creator:        p.Creator,
		Receiver:       p.Receiver,
		Value:          p.Value,
		StartTime:      p.StartTime,
		Duration:       p.Duration,
		PaidToDate:     p.PaidToDate,
		IsFork:         p.IsFork,
		ForkedChildren: append([]int64{}, p.ForkedChildren...),
		IsForked:       p.IsForked(),
	}
	if p.IsFork {
		parent := p.ParentIndex
		out.ParentIndex = &parent
	}
	return out
}

func toAPIEvents(events []*models.Event) []api.Event {
	out := make([]api.Event, len(events))
	for i, e := range events {
		out[i] = api.Event{
			Seq:          e.Seq,
			Kind:         string(e.Kind),
			PaymentIndex: e.PaymentIndex,
			Participant:  e.Participant,
			Counterparty: e.Counterparty,
			Amount:       e.Amount,
			At:           e.At,
		}
	}
	return out
}

package dispatch

import (
	"time"

	"courier-dispatch/internal/config"
)

// ExhaustedAction says what happens to a PENDING order once no eligible candidate is left.
type ExhaustedAction string

// Supported exhausted actions.
const (
	// HoldPending keeps the order PENDING for partners that come on duty later.
	HoldPending ExhaustedAction = config.ExhaustedHold
	// CancelOrder appends an order-level CANCELLED by the dispatcher.
	CancelOrder ExhaustedAction = config.ExhaustedCancel
)

// Policy configures offering and re-offering.
type Policy struct {
	OfferWindow     time.Duration
	SweepGrace      time.Duration
	ExhaustedAction ExhaustedAction
	// ReofferOnReject sends order-available-again to remaining candidates after a decline.
	ReofferOnReject bool
}

// DefaultPolicy returns the stock policy: 60s window, hold exhausted orders, re-offer on reject.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.DefaultDispatch())
}

// PolicyFromConfig maps dispatch settings onto a Policy.
func PolicyFromConfig(d config.Dispatch) Policy {
	p := Policy{
		OfferWindow:     d.OfferWindow,
		SweepGrace:      d.SweepGrace,
		ExhaustedAction: ExhaustedAction(d.ExhaustedAction),
		ReofferOnReject: d.ReofferOnReject,
	}
	if p.OfferWindow <= 0 {
		p.OfferWindow = 60 * time.Second
	}
	if p.ExhaustedAction != CancelOrder {
		p.ExhaustedAction = HoldPending
	}
	return p
}

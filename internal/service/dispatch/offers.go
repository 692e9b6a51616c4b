package dispatch

import (
	"sort"
	"sync"
	"time"

	"courier-dispatch/internal/domain"
)

// Offer is an outstanding decision window issued by this instance.
type Offer struct {
	OrderID  string
	Partner  domain.PartnerID
	Deadline time.Time
}

// offerBook tracks who currently holds which order.
type offerBook struct {
	mu      sync.Mutex
	byOrder map[string]map[domain.PartnerID]time.Time
}

func newOfferBook() *offerBook {
	return &offerBook{byOrder: make(map[string]map[domain.PartnerID]time.Time)}
}

// Add registers o unless the partner already holds the order.
func (b *offerBook) Add(o Offer) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	holders, ok := b.byOrder[o.OrderID]
	if !ok {
		holders = make(map[domain.PartnerID]time.Time)
		b.byOrder[o.OrderID] = holders
	}
	if _, ok := holders[o.Partner]; ok {
		return false
	}
	holders[o.Partner] = o.Deadline
	return true
}

func (b *offerBook) Live(orderID string, p domain.PartnerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.byOrder[orderID][p]
	return ok
}

func (b *offerBook) Remove(orderID string, p domain.PartnerID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	holders, ok := b.byOrder[orderID]
	if !ok {
		return
	}
	delete(holders, p)
	if len(holders) == 0 {
		delete(b.byOrder, orderID)
	}
}

// Drop forgets every offer for the order and returns who held it.
func (b *offerBook) Drop(orderID string) []domain.PartnerID {
	b.mu.Lock()
	defer b.mu.Unlock()

	holders := b.byOrder[orderID]
	delete(b.byOrder, orderID)
	return sortedPartners(holders)
}

func (b *offerBook) Holders(orderID string) []domain.PartnerID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedPartners(b.byOrder[orderID])
}

// Due returns offers whose deadline is not after cutoff, oldest first.
func (b *offerBook) Due(cutoff time.Time) []Offer {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Offer
	for orderID, holders := range b.byOrder {
		for p, deadline := range holders {
			if !deadline.After(cutoff) {
				out = append(out, Offer{OrderID: orderID, Partner: p, Deadline: deadline})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Deadline.Equal(out[j].Deadline) {
			if out[i].OrderID == out[j].OrderID {
				return out[i].Partner < out[j].Partner
			}
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].Deadline.Before(out[j].Deadline)
	})
	return out
}

func (b *offerBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, holders := range b.byOrder {
		n += len(holders)
	}
	return n
}

func sortedPartners(m map[domain.PartnerID]time.Time) []domain.PartnerID {
	out := make([]domain.PartnerID, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

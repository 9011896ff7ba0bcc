package order

import (
	"strings"
	"time"
)

// Status is the order's aggregate status, derived from its item statuses.
type Status string

const (
	StatusPending            Status = "pending"
	StatusProcessing         Status = "processing"
	StatusShipped            Status = "shipped"
	StatusDelivered          Status = "delivered"
	StatusCancelled          Status = "cancelled"
	StatusReturned           Status = "returned"
	StatusPartiallyReturned  Status = "partially_returned"
	StatusPartiallyCancelled Status = "partially_cancelled"
	StatusReturnRequested    Status = "return_requested"
	StatusReturnRejected     Status = "return_rejected"
)

// Terminal reports whether the status ends the order's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusReturned
}

// Title renders the status for timeline labels: underscores become spaces
// and each word is capitalized ("partially_returned" -> "Partially Returned").
func (s Status) Title() string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ComputeStatus derives the aggregate order status from the multiset of item
// statuses. Rules are evaluated in order; the first match wins.
func ComputeStatus(items []Item) Status {
	var total, delivered, cancelled, returned, returnRequested, returnRejected, shipped int
	for _, it := range items {
		total++
		switch it.Status {
		case ItemDelivered:
			delivered++
		case ItemCancelled:
			cancelled++
		case ItemReturned:
			returned++
		case ItemReturnRequested:
			returnRequested++
		case ItemReturnRejected:
			returnRejected++
		case ItemShipped:
			shipped++
		}
	}

	switch {
	case total > 0 && delivered == total:
		return StatusDelivered
	case total > 0 && cancelled == total:
		return StatusCancelled
	case total > 0 && returned == total:
		return StatusReturned
	case returned > 0:
		return StatusPartiallyReturned
	case cancelled > 0:
		return StatusPartiallyCancelled
	case returnRequested > 0:
		return StatusReturnRequested
	case returnRejected > 0:
		return StatusReturnRejected
	case shipped > 0:
		return StatusShipped
	case delivered > 0:
		return StatusProcessing
	default:
		return StatusPending
	}
}

// RecomputeStatus re-derives the aggregate status after an item mutation.
// It is the only writer of the order's status. When the status changes it
// appends a timeline entry labeled "Order <Title>" unless an entry already
// containing that title exists (re-entry guard), marks the entry completed
// for terminal statuses, and renormalizes the Current flags. Reaching
// delivered flips the payment status to paid when it is not already.
// Returns whether the status changed.
func (o *Order) RecomputeStatus(now time.Time) bool {
	next := ComputeStatus(o.Items)
	if next == o.status {
		o.markCurrent()
		return false
	}
	o.status = next

	title := next.Title()
	seen := false
	for _, e := range o.Timeline {
		if strings.Contains(e.Label, title) {
			seen = true
			break
		}
	}
	if !seen {
		o.Timeline = append(o.Timeline, TimelineEvent{
			Label:     "Order " + title,
			Completed: next.Terminal(),
			At:        now,
		})
	}
	o.markCurrent()

	if next == StatusDelivered && o.PaymentStatus != PaymentPaid {
		o.PaymentStatus = PaymentPaid
	}
	o.UpdatedAt = now
	return true
}

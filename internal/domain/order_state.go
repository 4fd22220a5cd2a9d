package domain

import (
	"fmt"
	"strings"
	"time"
)

type Actor struct {
	UserID  string
	IsAdmin bool
}

type Operation string

const (
	OpPlace               Operation = "place"
	OpApprove             Operation = "approve"
	OpShip                Operation = "ship"
	OpCancel              Operation = "cancel"
	OpRequestReturn       Operation = "request_return"
	OpCancelReturnRequest Operation = "cancel_return_request"
	OpApproveReturn       Operation = "approve_return"
	OpDenyReturn          Operation = "deny_return"
	OpMarkReturned        Operation = "mark_returned"
	OpSoftDelete          Operation = "soft_delete"
)

// Policy holds the time windows measured from the order's anchors.
type Policy struct {
	CancelWindow time.Duration
	ReturnWindow time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		CancelWindow: 24 * time.Hour,
		ReturnWindow: 7 * 24 * time.Hour,
	}
}

func (o *Order) Approve(actor Actor, now time.Time) error {
	if err := o.mutable(); err != nil {
		return err
	}
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if o.Status != OrderPending {
		return statusConflict("ORDER_NOT_PENDING", "only pending orders can be approved", o.Status)
	}
	if o.PaymentMethod == OnlinePayment && o.PaymentStatus != PaymentPaid {
		return Conflict("PAYMENT_NOT_CAPTURED", "online orders must be paid before approval")
	}
	o.Status = OrderApproved
	o.touch(now)
	return nil
}

func (o *Order) Ship(actor Actor, trackingID string, estimatedDelivery *time.Time, now time.Time) error {
	if err := o.mutable(); err != nil {
		return err
	}
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if o.Status != OrderApproved {
		return statusConflict("ORDER_NOT_APPROVED", "only approved orders can be shipped", o.Status)
	}
	o.Status = OrderShipped
	o.TrackingID = strings.TrimSpace(trackingID)
	o.EstimatedDelivery = nil
	if estimatedDelivery != nil {
		o.EstimatedDelivery = timePtr(*estimatedDelivery)
	}
	o.ShippedAt = timePtr(now)
	o.touch(now)
	return nil
}

func (o *Order) Cancel(actor Actor, p Policy, now time.Time) error {
	if err := o.mutable(); err != nil {
		return err
	}
	if err := o.requireOwnerOrAdmin(actor); err != nil {
		return err
	}
	if o.Status != OrderPending && o.Status != OrderApproved {
		return statusConflict("ORDER_NOT_CANCELLABLE", "only pending or approved orders can be cancelled", o.Status)
	}
	if now.Sub(o.CreatedAt) > p.CancelWindow {
		return Conflict("CANCEL_WINDOW_EXPIRED", fmt.Sprintf("orders can only be cancelled within %s of placement", p.CancelWindow))
	}
	o.Status = OrderCancelled
	o.CancelledBy = actor.UserID
	o.CancelledAt = timePtr(now)
	o.touch(now)
	return nil
}

func (o *Order) RequestReturn(actor Actor, reason string, p Policy, now time.Time) error {
	if err := o.mutable(); err != nil {
		return err
	}
	if !o.OwnedBy(actor.UserID) {
		return Forbidden("NOT_ORDER_OWNER", "only the owner can request a return")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Validation("RETURN_REASON_REQUIRED", "a return reason is required")
	}
	if o.Status != OrderShipped {
		return statusConflict("ORDER_NOT_SHIPPED", "only shipped orders can be returned", o.Status)
	}
	if o.ReturnStatus != ReturnNotRequested {
		return returnConflict("RETURN_ALREADY_REQUESTED", "a return was already requested for this order", o.ReturnStatus)
	}
	if now.Sub(o.returnAnchor()) > p.ReturnWindow {
		return Conflict("RETURN_WINDOW_EXPIRED", fmt.Sprintf("returns can only be requested within %s of shipment", p.ReturnWindow))
	}
	o.ReturnStatus = ReturnRequested
	o.ReturnReason = reason
	o.ReturnRequestedAt = timePtr(now)
	o.touch(now)
	return nil
}

func (o *Order) CancelReturnRequest(actor Actor, now time.Time) error {
	if err := o.mutable(); err != nil {
		return err
	}
	if err := o.requireOwnerOrAdmin(actor); err != nil {
		return err
	}
	if o.ReturnStatus != ReturnRequested {
		return returnConflict("RETURN_NOT_REQUESTED", "there is no pending return request", o.ReturnStatus)
	}
	o.ReturnStatus = ReturnNotRequested
	o.ReturnReason = ""
	o.ReturnRequestedAt = nil
	o.touch(now)
	return nil
}

func (o *Order) ApproveReturn(actor Actor, now time.Time) error {
	if err := o.mutable(); err != nil {
		return err
	}
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if o.Status != OrderShipped {
		return statusConflict("ORDER_NOT_SHIPPED", "only shipped orders can have a return approved", o.Status)
	}
	if o.ReturnStatus != ReturnRequested {
		return returnConflict("RETURN_NOT_REQUESTED", "there is no pending return request", o.ReturnStatus)
	}
	o.ReturnStatus = ReturnApproved
	o.Status = OrderReturnApproved
	o.ReturnApprovedBy = actor.UserID
	o.ReturnApprovedAt = timePtr(now)
	o.touch(now)
	return nil
}

func (o *Order) DenyReturn(actor Actor, now time.Time) error {
	if err := o.mutable(); err != nil {
		return err
	}
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if o.ReturnStatus != ReturnRequested {
		return returnConflict("RETURN_NOT_REQUESTED", "there is no pending return request", o.ReturnStatus)
	}
	o.ReturnStatus = ReturnDenied
	o.ReturnReason = ""
	o.ReturnDeniedBy = actor.UserID
	o.ReturnDeniedAt = timePtr(now)
	o.touch(now)
	return nil
}

// MarkReturned closes an approved return once the goods are back.
func (o *Order) MarkReturned(actor Actor, now time.Time) error {
	if err := o.mutable(); err != nil {
		return err
	}
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if o.Status != OrderReturnApproved || o.ReturnStatus != ReturnApproved {
		return returnConflict("RETURN_NOT_APPROVED", "only approved returns can be marked as returned", o.ReturnStatus)
	}
	o.ReturnStatus = ReturnReturned
	o.ReturnReason = ""
	o.ReturnedAt = timePtr(now)
	o.touch(now)
	return nil
}

func (o *Order) SoftDelete(actor Actor, now time.Time) error {
	if err := o.mutable(); err != nil {
		return err
	}
	if err := o.requireOwnerOrAdmin(actor); err != nil {
		return err
	}
	if o.Status == OrderShipped {
		return statusConflict("ORDER_IN_TRANSIT", "shipped orders cannot be deleted", o.Status)
	}
	o.IsDeleted = true
	o.touch(now)
	return nil
}

func (o *Order) returnAnchor() time.Time {
	if o.ShippedAt != nil {
		return *o.ShippedAt
	}
	return o.CreatedAt
}

func (o *Order) mutable() error {
	if o.IsDeleted {
		return Conflict("ORDER_DELETED", "order has been deleted")
	}
	return nil
}

func (o *Order) requireOwnerOrAdmin(actor Actor) error {
	if actor.IsAdmin || o.OwnedBy(actor.UserID) {
		return nil
	}
	return Forbidden("NOT_ORDER_OWNER", "order belongs to another user")
}

func requireAdmin(actor Actor) error {
	if !actor.IsAdmin {
		return Forbidden("ADMIN_REQUIRED", "admin privileges required")
	}
	return nil
}

func statusConflict(code, msg string, current OrderStatus) error {
	return Conflict(code, fmt.Sprintf("%s (status is %q)", msg, current))
}

func returnConflict(code, msg string, current ReturnStatus) error {
	return Conflict(code, fmt.Sprintf("%s (return status is %q)", msg, current))
}

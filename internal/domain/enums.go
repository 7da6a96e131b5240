package domain

import "slices"

// Enumerations are plain strings on the wire. Valid reports whether a value is
// one of the declared members; any other string violates the API contract.

type UserRole string

const (
	UserRoleCustomer UserRole = "CUSTOMER"
	UserRoleSeller   UserRole = "SELLER"
	UserRoleAdmin    UserRole = "ADMIN"
)

var userRoles = []UserRole{UserRoleCustomer, UserRoleSeller, UserRoleAdmin}

func (r UserRole) Valid() bool { return slices.Contains(userRoles, r) }

type AddressType string

const (
	AddressTypeShipping AddressType = "SHIPPING"
	AddressTypeBilling  AddressType = "BILLING"
)

var addressTypes = []AddressType{AddressTypeShipping, AddressTypeBilling}

func (t AddressType) Valid() bool { return slices.Contains(addressTypes, t) }

type PaymentMethodType string

const (
	PaymentMethodCreditCard     PaymentMethodType = "CREDIT_CARD"
	PaymentMethodDebitCard      PaymentMethodType = "DEBIT_CARD"
	PaymentMethodPayPal         PaymentMethodType = "PAYPAL"
	PaymentMethodBankTransfer   PaymentMethodType = "BANK_TRANSFER"
	PaymentMethodCashOnDelivery PaymentMethodType = "CASH_ON_DELIVERY"
)

var paymentMethodTypes = []PaymentMethodType{
	PaymentMethodCreditCard,
	PaymentMethodDebitCard,
	PaymentMethodPayPal,
	PaymentMethodBankTransfer,
	PaymentMethodCashOnDelivery,
}

func (t PaymentMethodType) Valid() bool { return slices.Contains(paymentMethodTypes, t) }

// IsCard reports whether the method carries card digits and an expiry.
func (t PaymentMethodType) IsCard() bool {
	return t == PaymentMethodCreditCard || t == PaymentMethodDebitCard
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

var paymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusCompleted,
	PaymentStatusFailed,
	PaymentStatusRefunded,
}

func (s PaymentStatus) Valid() bool { return slices.Contains(paymentStatuses, s) }

type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "DRAFT"
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusInactive ProductStatus = "INACTIVE"
	ProductStatusArchived ProductStatus = "ARCHIVED"
)

var productStatuses = []ProductStatus{
	ProductStatusDraft,
	ProductStatusActive,
	ProductStatusInactive,
	ProductStatusArchived,
}

func (s ProductStatus) Valid() bool { return slices.Contains(productStatuses, s) }

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

func (s OrderStatus) Valid() bool { return slices.Contains(orderStatuses, s) }

// OrderStatuses lists every status in lifecycle order.
func OrderStatuses() []OrderStatus { return slices.Clone(orderStatuses) }

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusRefunded},
}

// CanTransitionTo reports whether an order may move from s to next.
// CANCELLED and REFUNDED are terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return slices.Contains(orderTransitions[s], next)
}

// HoldsStock reports whether an order in this status has reserved inventory.
func (s OrderStatus) HoldsStock() bool {
	return s == OrderStatusConfirmed || s == OrderStatusProcessing
}

// CountsAsRevenue is false for orders whose money never settled or was returned.
func (s OrderStatus) CountsAsRevenue() bool {
	return s != OrderStatusCancelled && s != OrderStatusRefunded
}

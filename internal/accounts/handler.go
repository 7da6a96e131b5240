// Package accounts serves registration, login and the caller's own
// addresses and payment methods.
package accounts

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joao-fontenele/marketplace/internal/api"
	"github.com/joao-fontenele/marketplace/internal/apperr"
	"github.com/joao-fontenele/marketplace/internal/auth"
	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/validation"
)

type Store interface {
	CreateUser(ctx context.Context, u *domain.User, passwordHash string) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, string, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListAddresses(ctx context.Context, userID string) ([]domain.Address, error)
	CreateAddress(ctx context.Context, a *domain.Address) error
	ListPaymentMethods(ctx context.Context, userID string) ([]domain.PaymentMethod, error)
	CreatePaymentMethod(ctx context.Context, pm *domain.PaymentMethod) error
}

type Handler struct {
	store  Store
	tokens *auth.Tokens
	logger *slog.Logger
}

func NewHandler(store Store, tokens *auth.Tokens, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		tokens: tokens,
		logger: logger,
	}
}

var errInvalidCredentials = apperr.Unauthorized("Invalid credentials")

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterData
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Struct(req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	if req.Role == "" {
		req.Role = domain.UserRoleCustomer
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	user := &domain.User{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	}
	if err := h.store.CreateUser(r.Context(), user, hash); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	result, err := h.authResult(user)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	api.WriteCreated(w, h.logger, "Registration successful", result)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginData
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Struct(req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	user, hash, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			err = errInvalidCredentials
		}
		api.WriteError(w, h.logger, err)
		return
	}

	ok, err := auth.CheckPassword(hash, req.Password)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	if !ok {
		api.WriteError(w, h.logger, errInvalidCredentials)
		return
	}

	result, err := h.authResult(user)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("user logged in", "user_id", user.ID)
	api.WriteOK(w, h.logger, "Login successful", result)
}

func (h *Handler) authResult(u *domain.User) (domain.AuthResult, error) {
	token, expires, err := h.tokens.Issue(domain.AuthenticatedUser{
		ID:         u.ID,
		Email:      u.Email,
		Role:       u.Role,
		IsVerified: u.IsVerified,
	})
	if err != nil {
		return domain.AuthResult{}, err
	}
	return domain.AuthResult{Token: token, TokenType: "Bearer", ExpiresAt: expires, User: *u}, nil
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.MustUser(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	user, err := h.store.GetUser(r.Context(), caller.ID)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	api.WriteOK(w, h.logger, "User retrieved", user)
}

func (h *Handler) HandleListAddresses(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.MustUser(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	addresses, err := h.store.ListAddresses(r.Context(), caller.ID)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	api.WriteOK(w, h.logger, "Addresses retrieved", addresses)
}

func (h *Handler) HandleCreateAddress(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.MustUser(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	var req domain.AddressCreateData
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	req.Country = strings.ToUpper(req.Country)
	if err := validation.Struct(req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	address := &domain.Address{
		UserID:     caller.ID,
		Type:       req.Type,
		FullName:   req.FullName,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		Phone:      req.Phone,
		IsDefault:  req.IsDefault,
	}
	if err := h.store.CreateAddress(r.Context(), address); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("address created", "user_id", caller.ID, "address_id", address.ID)
	api.WriteCreated(w, h.logger, "Address created", address)
}

func (h *Handler) HandleListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.MustUser(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	methods, err := h.store.ListPaymentMethods(r.Context(), caller.ID)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	api.WriteOK(w, h.logger, "Payment methods retrieved", methods)
}

func (h *Handler) HandleCreatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.MustUser(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	var req domain.PaymentMethodCreateData
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	if err := validatePaymentMethod(req, time.Now()); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	pm := &domain.PaymentMethod{
		UserID:      caller.ID,
		Type:        req.Type,
		Provider:    req.Provider,
		Last4:       req.Last4,
		ExpiryMonth: req.ExpiryMonth,
		ExpiryYear:  req.ExpiryYear,
		IsDefault:   req.IsDefault,
	}
	if err := h.store.CreatePaymentMethod(r.Context(), pm); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("payment method created", "user_id", caller.ID, "payment_method_id", pm.ID, "type", pm.Type)
	api.WriteCreated(w, h.logger, "Payment method created", pm)
}

// validatePaymentMethod adds the card rules that depend on the method type.
func validatePaymentMethod(req domain.PaymentMethodCreateData, now time.Time) error {
	var fields []apperr.FieldError
	if err := validation.Struct(req); err != nil {
		appErr, ok := apperr.As(err)
		if !ok {
			return err
		}
		fields = append(fields, appErr.Fields...)
	}

	if req.Type.IsCard() {
		if req.Last4 == "" {
			fields = append(fields, apperr.FieldError{Field: "last4", Message: "is required for cards"})
		}
		if req.ExpiryMonth == 0 {
			fields = append(fields, apperr.FieldError{Field: "expiryMonth", Message: "is required for cards"})
		}
		if req.ExpiryYear == 0 {
			fields = append(fields, apperr.FieldError{Field: "expiryYear", Message: "is required for cards"})
		}
		if req.ExpiryMonth != 0 && req.ExpiryYear != 0 &&
			(req.ExpiryYear < now.Year() || (req.ExpiryYear == now.Year() && req.ExpiryMonth < int(now.Month()))) {
			fields = append(fields, apperr.FieldError{Field: "expiryYear", Message: "card has expired"})
		}
	}

	if len(fields) > 0 {
		return apperr.Validation(fields...)
	}
	return nil
}

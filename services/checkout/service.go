package checkout

import (
	"context"
	"math"
	"strings"

	"github.com/ferreteria/storefront/internal/observability"
	"github.com/ferreteria/storefront/services"
	"github.com/ferreteria/storefront/services/exchangerate"
	"github.com/ferreteria/storefront/storeapi"
	"go.uber.org/zap"
)

// Backend is the part of the store backend the checkout needs.
type Backend interface {
	LookupGuest(ctx context.Context, idType, idNumber string) (*storeapi.GuestProfile, error)
	ValidateDiscount(ctx context.Context, code string, subtotal float64) (*storeapi.Discount, error)
	CreateOrder(ctx context.Context, token string, order *storeapi.OrderRequest) (*storeapi.Order, error)
}

// RateProvider supplies the current exchange rate.
type RateProvider interface {
	GetCurrent(ctx context.Context) (exchangerate.Rate, error)
}

// PickupInfo is the static store location shown when pickup is chosen.
type PickupInfo struct {
	Address string `json:"address"`
	Hours   string `json:"hours"`
	Phone   string `json:"phone"`
}

// Options configures the checkout service.
type Options struct {
	EnabledPayments map[PaymentMethod]bool
	Pickup          PickupInfo
}

// Service drives checkout sessions against the store backend.
type Service struct {
	backend Backend
	store   *SessionStore
	rates   RateProvider
	opts    Options
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewService creates a checkout service.
func NewService(backend Backend, store *SessionStore, rates RateProvider, opts Options, logger *zap.Logger, metrics *observability.Metrics) *Service {
	if opts.EnabledPayments == nil {
		opts.EnabledPayments = map[PaymentMethod]bool{
			PaymentZelle:         true,
			PaymentPagoMovil:     true,
			PaymentTransferencia: true,
		}
	}
	return &Service{
		backend: backend,
		store:   store,
		rates:   rates,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// Resolve returns the session with the given id, creating a new one when it
// is missing or expired. The guest flag is refreshed on every call.
func (s *Service) Resolve(id string, guest bool) (*Session, bool) {
	if id != "" {
		if sess := s.store.Get(id); sess != nil {
			sess.Wizard.SetGuest(guest)
			return sess, false
		}
	}
	sess := s.store.Create(guest)
	s.metrics.SetActiveCheckouts(s.store.Len())
	return sess, true
}

// Session returns an existing session.
func (s *Service) Session(id string) (*Session, error) {
	sess := s.store.Get(id)
	if sess == nil {
		return nil, services.ErrCheckoutNotFound
	}
	return sess, nil
}

// Pickup returns the store pickup information.
func (s *Service) Pickup() PickupInfo {
	return s.opts.Pickup
}

// EnabledPayments lists the payment methods currently accepted.
func (s *Service) EnabledPayments() []PaymentMethod {
	out := make([]PaymentMethod, 0, 3)
	for _, m := range []PaymentMethod{PaymentZelle, PaymentPagoMovil, PaymentTransferencia} {
		if s.opts.EnabledPayments[m] {
			out = append(out, m)
		}
	}
	return out
}

// SetPayment selects a payment method, rejecting disabled ones.
func (s *Service) SetPayment(sess *Session, p PaymentInput) error {
	if !s.opts.EnabledPayments[p.Method()] {
		return services.ErrPaymentMethodDisabled.WithDetail("method", string(p.Method()))
	}
	sess.Wizard.SetPayment(p)
	return nil
}

// Next validates the current step and advances.
func (s *Service) Next(sess *Session) (Step, error) {
	from := sess.Wizard.Step()
	step, err := sess.Wizard.Next()
	if err != nil {
		s.metrics.IncCheckoutStep(from.String(), "blocked")
		return step, err
	}
	s.metrics.IncCheckoutStep(from.String(), "advanced")
	return step, nil
}

// Back moves one step back.
func (s *Service) Back(sess *Session) Step {
	s.metrics.IncCheckoutStep(sess.Wizard.Step().String(), "back")
	return sess.Wizard.Back()
}

// Lookup fires a guest lookup for the identification the buyer just left.
// A backend failure is recorded on the wizard and never returned: it must
// not block the rest of the checkout. Responses for a superseded lookup are
// dropped.
func (s *Service) Lookup(ctx context.Context, sess *Session, idType, idNumber string) (View, error) {
	idType = strings.ToUpper(strings.TrimSpace(idType))
	idNumber = strings.TrimSpace(idNumber)
	if !IsIdentificationType(idType) {
		return View{}, services.ErrInvalidInput.WithDetail("idType", "idType must be one of: V E J G P")
	}
	if idNumber == "" {
		return View{}, services.ErrInvalidInput.WithDetail("idNumber", "idNumber is required")
	}

	seq := sess.Wizard.BeginLookup(idType, idNumber)
	profile, err := s.backend.LookupGuest(ctx, idType, idNumber)
	if err != nil {
		s.logger.Warn("guest lookup failed",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}
	if !sess.Wizard.CompleteLookup(seq, profile, err) {
		s.logger.Debug("discarded stale guest lookup",
			zap.String("session_id", sess.ID),
			zap.Uint64("seq", seq),
		)
	}
	return sess.Wizard.Snapshot(), nil
}

// ApplyDiscount validates a code with the backend. An empty code removes the
// current discount.
func (s *Service) ApplyDiscount(ctx context.Context, sess *Session, code string) (*AppliedDiscount, error) {
	code = NormalizeDiscountCode(code)
	if code == "" {
		sess.Wizard.SetDiscount(nil)
		return nil, nil
	}

	d, err := s.backend.ValidateDiscount(ctx, code, sess.Subtotal())
	if err != nil {
		if services.IsValidationError(err) {
			reason, _ := services.GetErrorDetails(err)["reason"].(string)
			if reason == "" {
				reason = "invalid code"
			}
			sess.Wizard.SetDiscountError(reason)
		} else {
			s.logger.Warn("discount validation failed", zap.String("code", code), zap.Error(err))
			sess.Wizard.SetDiscountError("could not validate the code, try again")
		}
		return nil, err
	}

	applied := &AppliedDiscount{Code: code, Amount: d.Amount}
	sess.Wizard.SetDiscount(applied)
	return applied, nil
}

// Summary are the display totals of a checkout.
type Summary struct {
	Items     []CartItem         `json:"items"`
	Subtotal  string             `json:"subtotal"`
	Discount  string             `json:"discount"`
	Total     string             `json:"total"`
	TotalUSD  string             `json:"totalUsd"`
	TotalBs   string             `json:"totalBs,omitempty"`
	Rate      *exchangerate.Rate `json:"rate,omitempty"`
	RateError string             `json:"rateError,omitempty"`
}

// Summary computes the totals. The bolívar total is only shown with a fresh
// rate; otherwise the reason is reported and the dollar totals still render.
func (s *Service) Summary(ctx context.Context, sess *Session) Summary {
	subtotal := sess.Subtotal()
	var discount float64
	if d := sess.Wizard.Discount(); d != nil {
		discount = d.Amount
	}
	total := math.Max(0, subtotal-discount)

	sum := Summary{
		Items:    sess.Items(),
		Subtotal: FormatAmount(subtotal),
		Discount: FormatAmount(discount),
		Total:    FormatAmount(total),
		TotalUSD: FormatUSD(total),
	}

	if s.rates == nil {
		return sum
	}
	rate, err := s.rates.GetCurrent(ctx)
	if err != nil {
		sum.RateError = "exchange rate unavailable"
		return sum
	}
	sum.Rate = &rate
	bs, err := rate.Convert(total)
	if err != nil {
		sum.RateError = "exchange rate is out of date"
		return sum
	}
	sum.TotalBs = FormatBs(bs)
	return sum
}

// Submit sends the order once. On success the cart is cleared and the
// session is discarded; on failure everything is kept for a retry.
func (s *Service) Submit(ctx context.Context, sess *Session, token string) (*storeapi.Order, error) {
	sub, err := sess.Wizard.beginSubmit(sess.Items(), s.opts.EnabledPayments)
	if err != nil {
		if !services.IsConflictError(err) {
			s.metrics.IncCheckoutStep(sess.Wizard.Step().String(), "blocked")
		}
		return nil, err
	}
	defer sess.Wizard.endSubmit()

	if s.rates != nil {
		if rate, rerr := s.rates.GetCurrent(ctx); rerr == nil && !rate.Stale {
			sub.request.ExchangeRate = rate.Value
		}
	}

	order, err := s.backend.CreateOrder(ctx, token, sub.request)
	if err != nil {
		s.metrics.IncOrderSubmitted(string(sub.method), "error")
		s.logger.Error("order submission failed",
			zap.String("session_id", sess.ID),
			zap.String("payment_method", string(sub.method)),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.IncOrderSubmitted(string(sub.method), "success")
	s.logger.Info("order created",
		zap.String("session_id", sess.ID),
		zap.String("order_id", order.ID),
		zap.String("payment_method", string(sub.method)),
	)

	sess.ClearCart()
	s.store.Delete(sess.ID)
	s.metrics.SetActiveCheckouts(s.store.Len())
	return order, nil
}

// Clear empties the cart and discards the wizard state.
func (s *Service) Clear(sess *Session) {
	sess.ClearCart()
}

// Store exposes the session store for background cleanup.
func (s *Service) Store() *SessionStore {
	return s.store
}

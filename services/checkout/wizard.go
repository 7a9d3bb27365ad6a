// Package checkout implements the storefront checkout wizard: a four step
// linear flow (contact, delivery, location, payment) followed by a single
// order submission to the store backend.
package checkout

import (
	"sync"

	"github.com/ferreteria/storefront/services"
	"github.com/ferreteria/storefront/storeapi"
	"github.com/ferreteria/storefront/utils"
)

// Step is the index of the current wizard step.
type Step int

const (
	StepContact Step = iota
	StepDelivery
	StepLocation
	StepPayment
)

// LastStep is the final step before submission.
const LastStep = StepPayment

func (s Step) String() string {
	switch s {
	case StepContact:
		return "contact"
	case StepDelivery:
		return "delivery"
	case StepLocation:
		return "location"
	case StepPayment:
		return "payment"
	default:
		return "unknown"
	}
}

// DeliveryMethod is pickup at the store or delivery to a location.
type DeliveryMethod string

const (
	DeliveryPickup   DeliveryMethod = "pickup"
	DeliveryDelivery DeliveryMethod = "delivery"
)

// Lookup is the state of the guest identification lookup.
type Lookup struct {
	Pending  bool   `json:"pending"`
	IDType   string `json:"idType,omitempty"`
	IDNumber string `json:"idNumber,omitempty"`
	Found    bool   `json:"found"`
	Error    string `json:"error,omitempty"`
}

// AppliedDiscount is a discount accepted by the backend.
type AppliedDiscount struct {
	Code   string  `json:"code"`
	Amount float64 `json:"amount"`
}

// Wizard holds the per-step state of one checkout. All methods are safe for
// concurrent use.
type Wizard struct {
	mu sync.Mutex

	step     Step
	guest    bool
	contact  Contact
	delivery DeliveryMethod
	location LocationInput
	payment  PaymentInput
	receipt  *Attachment
	account  Account

	discount      *AppliedDiscount
	discountError string

	lookup    Lookup
	lookupSeq uint64

	submitting bool
}

// NewWizard starts a wizard at the contact step.
func NewWizard(guest bool) *Wizard {
	return &Wizard{guest: guest}
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// SetGuest marks whether the buyer is signed in.
func (w *Wizard) SetGuest(guest bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.guest = guest
	if !guest {
		w.account = Account{}
	}
}

// SetContact replaces the contact fields. A pending lookup for an
// identification that no longer matches is abandoned.
func (w *Wizard) SetContact(c Contact) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.contact = c.normalized()
	if w.lookup.Pending && !w.lookupMatchesContact() {
		w.lookup.Pending = false
	}
}

func (w *Wizard) lookupMatchesContact() bool {
	return w.contact.IDType == w.lookup.IDType && w.contact.IDNumber == w.lookup.IDNumber
}

// SetDelivery selects pickup or delivery.
func (w *Wizard) SetDelivery(m DeliveryMethod) error {
	if m != DeliveryPickup && m != DeliveryDelivery {
		return services.ErrInvalidInput.WithDetail("deliveryMethod", "deliveryMethod must be one of: pickup delivery")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delivery = m
	return nil
}

// SetLocation replaces the location input. Switching variants drops the
// fields of the previous one.
func (w *Wizard) SetLocation(l LocationInput) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.location = l
}

// SetCoordinates records a geolocation result or a map click. Under manual
// entry there is nothing to set and it is ignored. The last write wins.
func (w *Wizard) SetCoordinates(c Coordinates) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch l := w.location.(type) {
	case AutoLocation:
		l.Coordinates = &c
		l.GeolocationError = ""
		w.location = l
	case MapLocation:
		l.Coordinates = &c
		w.location = l
	case nil:
		w.location = MapLocation{Coordinates: &c}
	}
}

// SetGeolocationFailed records a failed browser geolocation request.
func (w *Wizard) SetGeolocationFailed(reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if l, ok := w.location.(AutoLocation); ok {
		l.GeolocationError = reason
		w.location = l
	}
}

// SetPayment replaces the payment input. An attached receipt is kept.
func (w *Wizard) SetPayment(p PaymentInput) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.payment = p
}

// AttachReceipt stores the payment receipt. Nil removes it.
func (w *Wizard) AttachReceipt(a *Attachment) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.receipt = a
}

// SetAccount records the guest's create-account choice.
func (w *Wizard) SetAccount(a Account) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.account = a
}

// Next validates the current step and advances. On failure the step does not
// change and the returned error carries the field errors.
func (w *Wizard) Next() (Step, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.validateStep(w.step); err != nil {
		return w.step, err
	}
	if w.step == LastStep {
		return w.step, services.ErrInvalidInput.WithDetail("step", "payment is the last step, submit the order")
	}
	w.step++
	return w.step, nil
}

// Back moves one step back without validating anything.
func (w *Wizard) Back() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step > StepContact {
		w.step--
	}
	return w.step
}

// Reset discards all state.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = StepContact
	w.contact = Contact{}
	w.delivery = ""
	w.location = nil
	w.payment = nil
	w.receipt = nil
	w.account = Account{}
	w.discount = nil
	w.discountError = ""
	w.lookup = Lookup{}
	w.lookupSeq++
	w.submitting = false
}

// BeginLookup registers a guest lookup for the given identification and
// returns its sequence number. Any earlier lookup becomes stale.
func (w *Wizard) BeginLookup(idType, idNumber string) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.contact.IDType = idType
	w.contact.IDNumber = idNumber
	w.lookupSeq++
	w.lookup = Lookup{Pending: true, IDType: idType, IDNumber: idNumber}
	return w.lookupSeq
}

// CompleteLookup applies a lookup result. It is discarded, and false is
// returned, when a newer lookup was started or the identification fields no
// longer hold the looked-up value.
func (w *Wizard) CompleteLookup(seq uint64, profile *storeapi.GuestProfile, lookupErr error) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if seq != w.lookupSeq {
		return false
	}
	if !w.lookupMatchesContact() {
		w.lookup.Pending = false
		return false
	}

	w.lookup.Pending = false
	if lookupErr != nil {
		w.lookup.Error = "could not look up customer, fill in your details"
		return true
	}
	if profile == nil {
		return true
	}

	w.lookup.Found = true
	if profile.Name != "" {
		w.contact.Name = profile.Name
	}
	if profile.Email != "" {
		w.contact.Email = profile.Email
	}
	if profile.Phone != "" {
		w.contact.Phone = profile.Phone
	}
	return true
}

// SetDiscount records an accepted discount, or clears it when d is nil.
func (w *Wizard) SetDiscount(d *AppliedDiscount) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.discount = d
	w.discountError = ""
}

// SetDiscountError records a discount failure without touching the rest of the wizard.
func (w *Wizard) SetDiscountError(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.discount = nil
	w.discountError = msg
}

// Discount returns the applied discount, if any.
func (w *Wizard) Discount() *AppliedDiscount {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.discount
}

// validateStep must be called with the lock held.
func (w *Wizard) validateStep(s Step) error {
	switch s {
	case StepContact:
		return w.contact.validate(w.guest)
	case StepDelivery:
		if w.delivery == "" {
			return utils.FieldError("deliveryMethod", "deliveryMethod is required")
		}
		return nil
	case StepLocation:
		if w.delivery == DeliveryPickup {
			return nil
		}
		if w.location == nil {
			return utils.FieldError("method", "choose how to provide the delivery location")
		}
		return w.location.Validate()
	case StepPayment:
		if w.payment == nil {
			return utils.FieldError("method", "choose a payment method")
		}
		errs := []error{w.payment.Validate(), w.account.validate(w.guest)}
		if w.payment.RequiresReceipt() && w.receipt == nil {
			errs = append(errs, utils.FieldError("receipt", "payment receipt is required"))
		}
		if merged := utils.Merge(errs...); merged != nil {
			return merged
		}
		return nil
	}
	return nil
}

// submission is the snapshot taken when an order is submitted.
type submission struct {
	method  PaymentMethod
	request *storeapi.OrderRequest
}

// beginSubmit validates every step and marks the wizard as submitting. On a
// validation failure it moves to the first incomplete step.
func (w *Wizard) beginSubmit(cart []CartItem, enabled map[PaymentMethod]bool) (*submission, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.submitting {
		return nil, services.ErrSubmitInProgress
	}
	if len(cart) == 0 {
		return nil, services.ErrEmptyCart
	}
	for s := StepContact; s <= LastStep; s++ {
		if err := w.validateStep(s); err != nil {
			w.step = s
			return nil, err
		}
	}
	if !enabled[w.payment.Method()] {
		w.step = StepPayment
		return nil, services.ErrPaymentMethodDisabled.WithDetail("method", string(w.payment.Method()))
	}

	req := &storeapi.OrderRequest{
		Customer: storeapi.OrderCustomer{
			Name:     w.contact.Name,
			Email:    w.contact.Email,
			Phone:    w.contact.Phone,
			IDType:   w.contact.IDType,
			IDNumber: w.contact.IDNumber,
		},
		DeliveryMethod: string(w.delivery),
		Payment:        w.payment.order(),
		Items:          make([]storeapi.OrderItem, 0, len(cart)),
	}
	if w.delivery == DeliveryDelivery {
		req.Location = w.location.order()
	}
	if w.receipt != nil {
		req.Payment.Receipt = &storeapi.OrderReceipt{
			Filename:    w.receipt.Filename,
			ContentType: w.receipt.ContentType,
			Size:        len(w.receipt.Data),
			Data:        w.receipt.Data,
		}
	}
	if w.discount != nil {
		req.DiscountCode = w.discount.Code
	}
	if w.guest && w.account.Create {
		req.CreateAccount = true
		req.Password = w.account.Password
	}
	for _, it := range cart {
		req.Items = append(req.Items, storeapi.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	w.submitting = true
	return &submission{method: w.payment.Method(), request: req}, nil
}

// endSubmit clears the submitting flag. State is kept so a failed order can
// be retried without re-entering data.
func (w *Wizard) endSubmit() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
}

// View is a read-only snapshot of the wizard for the browser.
type View struct {
	Step           int              `json:"step"`
	StepName       string           `json:"stepName"`
	Guest          bool             `json:"guest"`
	Contact        Contact          `json:"contact"`
	DeliveryMethod DeliveryMethod   `json:"deliveryMethod,omitempty"`
	Location       *LocationForm    `json:"location,omitempty"`
	Payment        *PaymentForm     `json:"payment,omitempty"`
	CreateAccount  bool             `json:"createAccount"`
	Discount       *AppliedDiscount `json:"discount,omitempty"`
	DiscountError  string           `json:"discountError,omitempty"`
	Lookup         Lookup           `json:"lookup"`
	Submitting     bool             `json:"submitting"`
}

// Snapshot returns the current view.
func (w *Wizard) Snapshot() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := View{
		Step:           int(w.step),
		StepName:       w.step.String(),
		Guest:          w.guest,
		Contact:        w.contact,
		DeliveryMethod: w.delivery,
		CreateAccount:  w.account.Create,
		DiscountError:  w.discountError,
		Lookup:         w.lookup,
		Submitting:     w.submitting,
	}
	if w.location != nil {
		v.Location = LocationFormOf(w.location)
	}
	if w.payment != nil {
		v.Payment = PaymentFormOf(w.payment, w.receipt)
	}
	if w.discount != nil {
		d := *w.discount
		v.Discount = &d
	}
	return v
}

package handlers

import (
	"bytes"
	"io"
	"net/http"

	"github.com/ferreteria/storefront/app"
	"github.com/ferreteria/storefront/middleware"
	"github.com/ferreteria/storefront/services"
	"github.com/ferreteria/storefront/services/checkout"
	"github.com/ferreteria/storefront/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CheckoutState is everything the checkout page renders
type CheckoutState struct {
	SessionID string                   `json:"sessionId"`
	Wizard    checkout.View            `json:"wizard"`
	Summary   checkout.Summary         `json:"summary"`
	Payments  []checkout.PaymentMethod `json:"payments"`
	Pickup    *checkout.PickupInfo     `json:"pickup,omitempty"`
}

func checkoutState(deps *app.Dependencies, r *http.Request, sess *checkout.Session) CheckoutState {
	view := sess.Wizard.Snapshot()
	state := CheckoutState{
		SessionID: sess.ID,
		Wizard:    view,
		Summary:   deps.Checkout.Summary(r.Context(), sess),
		Payments:  deps.Checkout.EnabledPayments(),
	}
	if view.DeliveryMethod == checkout.DeliveryPickup {
		pickup := deps.Checkout.Pickup()
		state.Pickup = &pickup
	}
	return state
}

// checkoutHandler decodes an optional JSON body, applies it to the caller's
// session and answers with the new state.
func checkoutHandler[T any](deps *app.Dependencies, apply func(r *http.Request, sess *checkout.Session, body *T) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body T
		if r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
			if err := utils.DecodeJSON(r, &body); err != nil && err != io.EOF {
				HandleDecodeError(w, err, deps.Logger)
				return
			}
		}

		sess := checkoutSession(deps, w, r)
		if err := apply(r, sess, &body); err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		_ = utils.WriteOK(w, checkoutState(deps, r, sess))
	}
}

type empty struct{}

// GetCheckout handles GET /api/v1/checkout
func GetCheckout(deps *app.Dependencies) http.HandlerFunc {
	return checkoutHandler(deps, func(*http.Request, *checkout.Session, *empty) error { return nil })
}

// SetCartItem handles PUT /api/v1/checkout/cart/items. Quantity 0 removes the line.
func SetCartItem(deps *app.Dependencies) http.HandlerFunc {
	return checkoutHandler(deps, func(_ *http.Request, sess *checkout.Session, item *checkout.CartItem) error {
		return sess.SetItem(*item)
	})
}

// RemoveCartItem handles DELETE /api/v1/checkout/cart/items/{productID}
func RemoveCartItem(deps *app.Dependencies) http.HandlerFunc {
	return checkoutHandler(deps, func(r *http.Request, sess *checkout.Session, _ *empty) error {
		sess.RemoveItem(chi.URLParam(r, "productID"))
		return nil
	})
}

// ClearCheckout handles DELETE /api/v1/checkout
func ClearCheckout(deps *app.Dependencies) http.HandlerFunc {
	return checkoutHandler(deps, func(_ *http.Request, sess *checkout.Session, _ *empty) error {
		deps.Checkout.Clear(sess)
		return nil
	})
}

// SetContact handles PUT /api/v1/checkout/contact
func SetContact(deps *app.Dependencies) http.HandlerFunc {
	return checkoutHandler(deps, func(_ *http.Request, sess *checkout.Session, c *checkout.Contact) error {
		sess.Wizard.SetContact(*c)
		return nil
	})
}

// LookupRequest identifies a returning guest
type LookupRequest struct {
	IDType   string `json:"idType"`
	IDNumber string `json:"idNumber"`
}

// LookupGuest handles POST /api/v1/checkout/lookup, fired when the buyer
// leaves the identification field. A backend failure shows up in the
// wizard's lookup state, never as an error status.
func LookupGuest(deps *app.Dependencies) http.HandlerFunc {
	return checkoutHandler(deps, func(r *http.Request, sess *checkout.Session, req *LookupRequest) error {
		_, err := deps.Checkout.Lookup(r.Context(), sess, req.IDType, req.IDNumber)
		return err
	})
}

// DeliveryRequest selects pickup or delivery
type DeliveryRequest struct {
	DeliveryMethod checkout.DeliveryMethod `json:"deliveryMethod"`
}

// SetDelivery handles PUT /api/v1/checkout/delivery
func SetDelivery(deps *app.Dependencies) http.HandlerFunc {
	return checkoutHandler(deps, func(_ *http.Request, sess *checkout.Session, req *DeliveryRequest) error {
		return sess.Wizard.SetDelivery(req.DeliveryMethod)
	})
}

// SetLocation handles PUT /api/v1/checkout/location
func SetLocation(deps *app.Dependencies) http.HandlerFunc {
	return checkoutHandler(deps, func(_ *http.Request, sess *checkout.Session, form *checkout.LocationForm) error {
		loc, err := checkout.ParseLocation(*form)
		if err != nil {
			return err
		}
		sess.Wizard.SetLocation(loc)
		return nil
	})
}

// SetCoordinates handles POST /api/v1/checkout/location/coordinates, sent by
// a geolocation result or a map click.
func SetCoordinates(deps *app.Dependencies) http.HandlerFunc {
	return checkoutHandler(deps, func(_ *http.Request, sess *checkout.Session, c *checkout.Coordinates) error {
		sess.Wizard.SetCoordinates(*c)
		return nil
	})
}

// GeolocationFailure reports a failed browser geolocation request
type GeolocationFailure struct {
	Reason string `json:"reason"`
}

// SetGeolocationFailed handles POST /api/v1/checkout/location/geolocation-failed
func SetGeolocationFailed(deps *app.Dependencies) http.HandlerFunc {
	return checkoutHandler(deps, func(_ *http.Request, sess *checkout.Session, f *GeolocationFailure) error {
		reason := f.Reason
		if reason == "" {
			reason = "location unavailable"
		}
		sess.Wizard.SetGeolocationFailed(reason)
		return nil
	})
}

// SetPayment handles PUT /api/v1/checkout/payment
func SetPayment(deps *app.Dependencies) http.HandlerFunc {
	return checkoutHandler(deps, func(_ *http.Request, sess *checkout.Session, form *checkout.PaymentForm) error {
		p, err := checkout.ParsePayment(*form)
		if err != nil {
			return err
		}
		return deps.Checkout.SetPayment(sess, p)
	})
}

// receiptFormOverhead leaves room for multipart headers around the file.
const receiptFormOverhead = 1 << 20

// UploadReceipt handles POST /api/v1/checkout/payment/receipt with a
// multipart "receipt" file field.
func UploadReceipt(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, checkout.MaxReceiptSize+receiptFormOverhead)
		if err := r.ParseMultipartForm(checkout.MaxReceiptSize + receiptFormOverhead); err != nil {
			HandleServiceError(w, utils.FieldError("receipt", "receipt must be at most 5MB"), deps.Logger)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("receipt")
		if err != nil {
			HandleServiceError(w, utils.FieldError("receipt", "receipt file is required"), deps.Logger)
			return
		}
		defer file.Close()

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, io.LimitReader(file, checkout.MaxReceiptSize+1)); err != nil {
			HandleServiceError(w, services.WrapInternal("failed to read receipt", err), deps.Logger)
			return
		}

		contentType := header.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(buf.Bytes())
		}

		attachment, err := checkout.NewAttachment(header.Filename, contentType, buf.Bytes())
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}

		sess := checkoutSession(deps, w, r)
		sess.Wizard.AttachReceipt(attachment)
		_ = utils.WriteOK(w, checkoutState(deps, r, sess))
	}
}

// RemoveReceipt handles DELETE /api/v1/checkout/payment/receipt
func RemoveReceipt(deps *app.Dependencies) http.HandlerFunc {
	return checkoutHandler(deps, func(_ *http.Request, sess *checkout.Session, _ *empty) error {
		sess.Wizard.AttachReceipt(nil)
		return nil
	})
}

// AccountRequest is the guest's create-account choice
type AccountRequest struct {
	CreateAccount bool   `json:"createAccount"`
	Password      string `json:"password"`
}

// SetAccount handles PUT /api/v1/checkout/account
func SetAccount(deps *app.Dependencies) http.HandlerFunc {
	return checkoutHandler(deps, func(_ *http.Request, sess *checkout.Session, req *AccountRequest) error {
		sess.Wizard.SetAccount(checkout.Account{Create: req.CreateAccount, Password: req.Password})
		return nil
	})
}

// DiscountRequest carries a discount code. An empty code removes the discount.
type DiscountRequest struct {
	Code string `json:"code"`
}

// ApplyDiscount handles POST /api/v1/checkout/discount. A rejected code is
// reported in the wizard state as well as in the error response.
func ApplyDiscount(deps *app.Dependencies) http.HandlerFunc {
	return checkoutHandler(deps, func(r *http.Request, sess *checkout.Session, req *DiscountRequest) error {
		_, err := deps.Checkout.ApplyDiscount(r.Context(), sess, req.Code)
		return err
	})
}

// NextStep handles POST /api/v1/checkout/next
func NextStep(deps *app.Dependencies) http.HandlerFunc {
	return checkoutHandler(deps, func(_ *http.Request, sess *checkout.Session, _ *empty) error {
		_, err := deps.Checkout.Next(sess)
		return err
	})
}

// PreviousStep handles POST /api/v1/checkout/back
func PreviousStep(deps *app.Dependencies) http.HandlerFunc {
	return checkoutHandler(deps, func(_ *http.Request, sess *checkout.Session, _ *empty) error {
		deps.Checkout.Back(sess)
		return nil
	})
}

// SubmitOrder handles POST /api/v1/checkout/submit. A signed-in buyer's
// token is forwarded so the order is attached to the account.
func SubmitOrder(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(CheckoutCookieName)
		if err != nil || c.Value == "" {
			HandleServiceError(w, services.ErrCheckoutNotFound, deps.Logger)
			return
		}
		sess, err := deps.Checkout.Session(c.Value)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}

		order, err := deps.Checkout.Submit(r.Context(), sess, middleware.GetTokenFromContext(r.Context()))
		if err != nil {
			deps.Logger.Debug("order not submitted",
				zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
				zap.Error(err))
			HandleServiceError(w, err, deps.Logger)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     CheckoutCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   deps.Config.Session.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
		_ = utils.WriteCreated(w, order)
	}
}

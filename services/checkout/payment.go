package checkout

import (
	"strings"

	"github.com/ferreteria/storefront/services"
	"github.com/ferreteria/storefront/storeapi"
	"github.com/ferreteria/storefront/utils"
)

// PaymentMethod is one of the manual payment rails the store accepts.
type PaymentMethod string

const (
	PaymentZelle         PaymentMethod = "zelle"
	PaymentPagoMovil     PaymentMethod = "pagomovil"
	PaymentTransferencia PaymentMethod = "transferencia"
)

// MaxReceiptSize bounds a payment receipt attachment.
const MaxReceiptSize = 5 << 20

var receiptContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
	"application/pdf": true,
}

// Attachment is an uploaded payment receipt.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// NewAttachment checks the size and type of an uploaded receipt.
func NewAttachment(filename, contentType string, data []byte) (*Attachment, error) {
	if len(data) == 0 {
		return nil, utils.FieldError("receipt", "receipt file is empty")
	}
	if len(data) > MaxReceiptSize {
		return nil, utils.FieldError("receipt", "receipt must be at most 5MB")
	}
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if !receiptContentTypes[ct] {
		return nil, utils.FieldError("receipt", "receipt must be an image or a PDF")
	}
	return &Attachment{Filename: filename, ContentType: ct, Data: data}, nil
}

// PaymentInput is one of ZellePayment, PagoMovilPayment or TransferPayment.
type PaymentInput interface {
	Method() PaymentMethod
	Validate() error
	RequiresReceipt() bool
	order() storeapi.OrderPayment
}

// ZellePayment needs the sender details and a receipt.
type ZellePayment struct {
	SenderName string `json:"senderName" validate:"required,max=120"`
	SenderBank string `json:"senderBank" validate:"required,max=80"`
}

func (ZellePayment) Method() PaymentMethod { return PaymentZelle }
func (ZellePayment) RequiresReceipt() bool { return true }
func (p ZellePayment) Validate() error     { return utils.ValidateStruct(&p) }

func (p ZellePayment) order() storeapi.OrderPayment {
	return storeapi.OrderPayment{Method: string(PaymentZelle), SenderName: p.SenderName, SenderBank: p.SenderBank}
}

// PagoMovilPayment is a mobile interbank payment.
type PagoMovilPayment struct {
	Phone  string `json:"phone" validate:"required,numeric,min=10,max=11"`
	Cedula string `json:"cedula" validate:"required,numeric,min=6,max=9"`
	Bank   string `json:"bank" validate:"required,max=80"`
}

func (PagoMovilPayment) Method() PaymentMethod { return PaymentPagoMovil }
func (PagoMovilPayment) RequiresReceipt() bool { return false }
func (p PagoMovilPayment) Validate() error     { return utils.ValidateStruct(&p) }

func (p PagoMovilPayment) order() storeapi.OrderPayment {
	return storeapi.OrderPayment{Method: string(PaymentPagoMovil), Phone: p.Phone, Cedula: p.Cedula, Bank: p.Bank}
}

// TransferPayment is a bank transfer.
type TransferPayment struct {
	Beneficiary string `json:"beneficiary" validate:"required,max=120"`
	Bank        string `json:"bank" validate:"required,max=80"`
	Reference   string `json:"reference" validate:"required,max=40"`
}

func (TransferPayment) Method() PaymentMethod { return PaymentTransferencia }
func (TransferPayment) RequiresReceipt() bool { return false }
func (p TransferPayment) Validate() error     { return utils.ValidateStruct(&p) }

func (p TransferPayment) order() storeapi.OrderPayment {
	return storeapi.OrderPayment{
		Method:      string(PaymentTransferencia),
		Beneficiary: p.Beneficiary,
		Bank:        p.Bank,
		Reference:   p.Reference,
	}
}

// PaymentForm is the flat wire shape of a payment step.
type PaymentForm struct {
	Method      PaymentMethod `json:"method"`
	SenderName  string        `json:"senderName,omitempty"`
	SenderBank  string        `json:"senderBank,omitempty"`
	Phone       string        `json:"phone,omitempty"`
	Cedula      string        `json:"cedula,omitempty"`
	Bank        string        `json:"bank,omitempty"`
	Beneficiary string        `json:"beneficiary,omitempty"`
	Reference   string        `json:"reference,omitempty"`
	Receipt     string        `json:"receipt,omitempty"`
}

// ParsePayment turns a form into the variant named by its method.
func ParsePayment(f PaymentForm) (PaymentInput, error) {
	switch PaymentMethod(strings.ToLower(string(f.Method))) {
	case PaymentZelle:
		return ZellePayment{
			SenderName: strings.TrimSpace(f.SenderName),
			SenderBank: strings.TrimSpace(f.SenderBank),
		}, nil
	case PaymentPagoMovil:
		return PagoMovilPayment{
			Phone:  strings.TrimSpace(f.Phone),
			Cedula: strings.TrimSpace(f.Cedula),
			Bank:   strings.TrimSpace(f.Bank),
		}, nil
	case PaymentTransferencia:
		return TransferPayment{
			Beneficiary: strings.TrimSpace(f.Beneficiary),
			Bank:        strings.TrimSpace(f.Bank),
			Reference:   strings.TrimSpace(f.Reference),
		}, nil
	default:
		return nil, services.ErrInvalidInput.WithDetail("method", "payment method must be one of: zelle pagomovil transferencia")
	}
}

// PaymentFormOf renders a variant back to its flat form. The receipt is
// reported by file name only.
func PaymentFormOf(p PaymentInput, receipt *Attachment) *PaymentForm {
	var f *PaymentForm
	switch v := p.(type) {
	case ZellePayment:
		f = &PaymentForm{Method: PaymentZelle, SenderName: v.SenderName, SenderBank: v.SenderBank}
	case PagoMovilPayment:
		f = &PaymentForm{Method: PaymentPagoMovil, Phone: v.Phone, Cedula: v.Cedula, Bank: v.Bank}
	case TransferPayment:
		f = &PaymentForm{Method: PaymentTransferencia, Beneficiary: v.Beneficiary, Bank: v.Bank, Reference: v.Reference}
	default:
		return nil
	}
	if receipt != nil {
		f.Receipt = receipt.Filename
	}
	return f
}

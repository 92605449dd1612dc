// Package intent derives a coarse customer intent from normalized message
// text. Classification is a pure, total function: it always returns a result
// and unmatched input degrades to StepNormal.
package intent

import (
	"regexp"
	"strings"
)

// Step is the coarse intent used to branch conversation handling.
type Step string

const (
	// StepOrderDetails means the customer referenced a specific order id.
	StepOrderDetails Step = "orderDetails"
	// StepOrders means the customer supplied a phone number to look up
	// their order history.
	StepOrders Step = "orders"
	// StepAskPhone means the customer asked about an order without
	// identifying it; the conversation should ask for their phone number.
	StepAskPhone Step = "askPhone"
	// StepNormal is the default for everything else.
	StepNormal Step = "normal"
)

// Result is the classifier output. It carries no identity of its own and is
// not persisted by this package.
type Result struct {
	Step    Step   `json:"step"`
	OrderID string `json:"orderId,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

var (
	// Order ids are 24-hex-character document identifiers.
	orderIDExact  = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
	orderIDAnchor = regexp.MustCompile(`[0-9a-fA-F]{24}`)

	// Customer phone numbers: the "77" mobile prefix followed by exactly
	// seven digits.
	phoneExact = regexp.MustCompile(`^77\d{7}$`)
)

// orderDetailsPhrases mark a message as an order-details request when an
// order id appears somewhere in the same text.
var orderDetailsPhrases = []string{
	"تفاصيل الطلب",
	"تفاصيل طلبي",
	"order details",
}

// orderInquiryKeywords mark a general order inquiry with no identifier; the
// conversation responds by asking for a phone number.
var orderInquiryKeywords = []string{
	"طلب",
	"تتبع",
	"اوردر",
	"أوردر",
	"order",
	"track",
}

// Classify maps free text to an intent. The check order is part of the
// contract: identifier matches win over keyword matches, so a string that is
// both an order id and accidentally keyword-bearing resolves as an id.
func Classify(text string) Result {
	trimmed := strings.TrimSpace(text)

	if orderIDExact.MatchString(trimmed) {
		return Result{Step: StepOrderDetails, OrderID: trimmed}
	}

	lower := strings.ToLower(trimmed)
	if containsAny(lower, orderDetailsPhrases) {
		if id := orderIDAnchor.FindString(trimmed); id != "" {
			return Result{Step: StepOrderDetails, OrderID: id}
		}
	}

	if phoneExact.MatchString(trimmed) {
		return Result{Step: StepOrders, Phone: trimmed}
	}

	if containsAny(lower, orderInquiryKeywords) {
		return Result{Step: StepAskPhone}
	}

	return Result{Step: StepNormal}
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

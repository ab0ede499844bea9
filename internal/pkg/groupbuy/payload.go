package groupbuy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var payloadValidator = validator.New()

// ParsePaymentWebhook decodes a raw webhook body into a typed PaymentEvent.
// Unknown fields and structurally invalid shapes are rejected outright.
func ParsePaymentWebhook(rawBody []byte) (*PaymentEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(rawBody))
	dec.DisallowUnknownFields()

	var event PaymentEvent
	if err := dec.Decode(&event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON body", ErrInvalidPayload)
	}
	if err := payloadValidator.Struct(&event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &event, nil
}

// ParseExternalReference decodes the checkout reference string of the form
// `order=<uuid>;leader=<uuid>`, where the leader segment may be absent.
// A missing or malformed order segment is a validation error.
func ParseExternalReference(ref string) (*ExternalReference, error) {
	out := &ExternalReference{}
	for _, pair := range strings.Split(strings.TrimSpace(ref), ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("%w: malformed reference segment %q", ErrInvalidPayload, pair)
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "order":
			if _, err := uuid.Parse(value); err != nil {
				return nil, fmt.Errorf("%w: invalid order id in reference", ErrInvalidPayload)
			}
			out.OrderPublicID = value
		case "leader":
			if _, err := uuid.Parse(value); err != nil {
				return nil, fmt.Errorf("%w: invalid leader id in reference", ErrInvalidPayload)
			}
			out.LeaderPublicID = value
		default:
			// Unknown segments are tolerated so the checkout flow can
			// append metadata without breaking older engine versions.
		}
	}
	if out.OrderPublicID == "" {
		return nil, fmt.Errorf("%w: reference is missing the order id", ErrInvalidPayload)
	}
	return out, nil
}

package mercadopago

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Checkout metadata "type" values set by our own preference creation.
const (
	MetadataTypeUpgradeFee = "upgrade_fee"
)

// PaymentMetadata is the validated shape of the free-form metadata object we
// attach when creating checkouts. The gateway echoes it back on the payment;
// keys may arrive as strings or numbers depending on which surface wrote
// them, so parsing coerces both instead of trusting ad-hoc field access.
type PaymentMetadata struct {
	UserID      uint
	CourseID    uint
	BundleID    uint
	CouponID    uint
	Type        string
	NewBundleID uint
	NewAmount   float64
}

func (m *PaymentMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	if m.UserID, err = coerceID(raw, "user_id"); err != nil {
		return err
	}
	if m.CourseID, err = coerceID(raw, "course_id"); err != nil {
		return err
	}
	if m.BundleID, err = coerceID(raw, "bundle_id"); err != nil {
		return err
	}
	if m.CouponID, err = coerceID(raw, "coupon_id"); err != nil {
		return err
	}
	if m.NewBundleID, err = coerceID(raw, "new_bundle_id"); err != nil {
		return err
	}
	if v, ok := raw["type"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("metadata type: %w", err)
		}
		m.Type = strings.TrimSpace(s)
	}
	if v, ok := raw["new_amount"]; ok {
		if err := json.Unmarshal(v, &m.NewAmount); err != nil {
			return fmt.Errorf("metadata new_amount: %w", err)
		}
	}
	return nil
}

// Validate checks the invariants a product purchase must satisfy before the
// ingestor is allowed to write anything.
func (m *PaymentMetadata) Validate() error {
	if m.UserID == 0 {
		return errors.New("metadata missing user_id")
	}
	if m.CourseID == 0 && m.BundleID == 0 {
		return errors.New("metadata missing course_id/bundle_id")
	}
	if m.CourseID != 0 && m.BundleID != 0 {
		return errors.New("metadata carries both course_id and bundle_id")
	}
	return nil
}

// IsUpgradeFee reports whether the charge settles a plan-upgrade proration.
func (m *PaymentMetadata) IsUpgradeFee() bool {
	return m.Type == MetadataTypeUpgradeFee && m.NewBundleID != 0
}

// ExternalReference is the metadata we pack into a preapproval's
// external_reference so the webhook can self-heal a missing local row.
type ExternalReference struct {
	UserID   uint `json:"user_id"`
	BundleID uint `json:"bundle_id"`
}

// ParseExternalReference decodes the JSON external_reference of a
// preapproval. An empty input is not an error; it simply carries no hint.
func ParseExternalReference(raw string) (*ExternalReference, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	var out ExternalReference
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, fmt.Errorf("invalid external_reference: %w", err)
	}
	return &out, nil
}

func coerceID(raw map[string]json.RawMessage, key string) (uint, error) {
	v, ok := raw[key]
	if !ok {
		return 0, nil
	}

	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return parseID(key, n.String())
	}

	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return 0, fmt.Errorf("metadata %s is neither string nor number", key)
	}
	return parseID(key, strings.TrimSpace(s))
}

// parseID parses a numeric id. The gateway echoes numeric metadata through a
// float representation, so "42.0" and 42.0 must read as 42.
func parseID(key, s string) (uint, error) {
	if s == "" {
		return 0, nil
	}
	if id, err := strconv.ParseUint(s, 10, 64); err == nil {
		return uint(id), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != math.Trunc(f) {
		return 0, fmt.Errorf("metadata %s: invalid id %q", key, s)
	}
	return uint(f), nil
}

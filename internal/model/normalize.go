package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RawRecord is an incoming auction or reservation payload before
// normalization. The backend emits a mix of snake_case and camelCase
// spellings depending on the code path that produced the record; every
// accessor here resolves both spellings in a strict priority order.
// These accessors are the only sanctioned way to read a raw record.
type RawRecord map[string]interface{}

// DecodeRaw parses a JSON object into a RawRecord, preserving numeric
// precision (prices arrive as decimal strings or JSON numbers).
func DecodeRaw(data []byte) (RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw RawRecord
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return raw, nil
}

// DecodeRawList parses a JSON array of objects.
func DecodeRawList(data []byte) ([]RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raws []RawRecord
	if err := dec.Decode(&raws); err != nil {
		return nil, fmt.Errorf("failed to decode record list: %w", err)
	}
	return raws, nil
}

// field returns the first non-nil value among the given keys.
func (r RawRecord) field(keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		if t == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(t)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(t), true
	}
	return decimal.Zero, false
}

func toInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return 0, false
		}
		return d.IntPart(), true
	case float64:
		return int64(t), true
	}
	return 0, false
}

func toTime(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func toBool(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

func (r RawRecord) str(keys ...string) string {
	if s, ok := r.field(keys...).(string); ok {
		return s
	}
	return ""
}

// ID resolves the numeric entity id.
func (r RawRecord) ID() int64 {
	n, _ := toInt64(r.field("id", "auction_id", "auctionId"))
	return n
}

// CurrentPrice resolves the live price with strict priority:
// current_price, then currentPrice, then the server-computed
// computedPrice, then the start price, then zero.
func (r RawRecord) CurrentPrice() decimal.Decimal {
	if d, ok := toDecimal(r.field("current_price", "currentPrice")); ok {
		return d
	}
	if d, ok := toDecimal(r.field("computedPrice", "computed_price")); ok {
		return d
	}
	if d, ok := toDecimal(r.field("start_price", "startPrice")); ok {
		return d
	}
	return decimal.Zero
}

// StartPrice resolves the opening price, falling back to the resolved
// current price when neither spelling is present.
func (r RawRecord) StartPrice() decimal.Decimal {
	if d, ok := toDecimal(r.field("start_price", "startPrice")); ok {
		return d
	}
	return r.CurrentPrice()
}

// FloorPrice resolves the optional lower bound.
func (r RawRecord) FloorPrice() decimal.Decimal {
	d, _ := toDecimal(r.field("floor_price", "floorPrice"))
	return d
}

// Status resolves the uppercase lifecycle state.
func (r RawRecord) Status() Status {
	return Status(strings.ToUpper(r.str("status")))
}

// TurboStartedAt resolves the turbo activation timestamp, if any.
func (r RawRecord) TurboStartedAt() *time.Time {
	if t, ok := toTime(r.field("turbo_started_at", "turboStartedAt")); ok {
		return &t
	}
	return nil
}

// TurboActive reports turbo mode: an activation timestamp wins over the
// boolean flag.
func (r RawRecord) TurboActive() bool {
	if r.TurboStartedAt() != nil {
		return true
	}
	return toBool(r.field("turboActive", "turbo_active"))
}

// UpdatedTimestamp resolves the freshness timestamp used for sorting:
// updated_at, updatedAt, created_at, createdAt; zero when absent or
// unparseable.
func (r RawRecord) UpdatedTimestamp() time.Time {
	for _, v := range []interface{}{
		r.field("updated_at", "updatedAt"),
		r.field("created_at", "createdAt"),
	} {
		if t, ok := toTime(v); ok {
			return t
		}
	}
	return time.Time{}
}

// NormalizeAuction converts a raw record into the canonical shape.
// Records without a usable id are rejected.
func NormalizeAuction(raw RawRecord) (Auction, error) {
	id := raw.ID()
	if id == 0 {
		return Auction{}, fmt.Errorf("record has no id: %v", raw)
	}

	a := Auction{
		ID:             id,
		Title:          raw.str("title"),
		Description:    raw.str("description"),
		Instructor:     raw.str("instructor"),
		StartPrice:     raw.StartPrice(),
		CurrentPrice:   raw.CurrentPrice(),
		FloorPrice:     raw.FloorPrice(),
		Status:         raw.Status(),
		TurboActive:    raw.TurboActive(),
		TurboStartedAt: raw.TurboStartedAt(),
		UpdatedAt:      raw.UpdatedTimestamp(),
	}

	if t, ok := toTime(raw.field("start_time", "startTime")); ok {
		a.StartTime = t
	}
	if t, ok := toTime(raw.field("end_time", "endTime")); ok {
		a.EndTime = t
	}
	if t, ok := toTime(raw.field("next_drop_time", "nextDropTime")); ok {
		a.NextDropTime = &t
	}
	if t, ok := toTime(raw.field("created_at", "createdAt")); ok {
		a.CreatedAt = t
	}

	if a.Status == "" {
		a.Status = StatusActive
	}

	return a, nil
}

// NormalizeReservation converts a raw reservation record.
func NormalizeReservation(raw RawRecord) Reservation {
	res := Reservation{
		BookingCode: raw.str("booking_code", "bookingCode"),
		Status:      raw.str("status"),
	}
	res.ID, _ = toInt64(raw.field("id"))
	res.AuctionID, _ = toInt64(raw.field("auction_id", "auctionId"))
	res.UserID, _ = toInt64(raw.field("user_id", "userId"))
	res.LockedPrice, _ = toDecimal(raw.field("locked_price", "lockedPrice"))
	if t, ok := toTime(raw.field("reserved_at", "reservedAt", "created_at", "createdAt")); ok {
		res.ReservedAt = t
	}
	return res
}

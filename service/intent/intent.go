// Package intent turns the free text of a post into a typed transfer request.
//
// The recognised pattern is two labelled fields, in either order:
//
//	Token Address: <address>   an ASCII alphanumeric token, not validated here
//	Amount: <lamports>         a non-negative decimal integer that fits in 64 bits
//
// Labels are case-sensitive and each must appear exactly once. Spaces or tabs between a
// label and its value are optional; the value must be on the label's line. Digit
// groupings such as "1,000" or "1 000" are rejected rather than truncated.
package intent

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Field names reported by ExtractionError.
const (
	FieldTokenAddress = "token_address"
	FieldAmount       = "amount"
)

const (
	tokenAddressLabel = "Token Address:"
	amountLabel       = "Amount:"
)

var (
	tokenAddressLabelRegex = regexp.MustCompile(regexp.QuoteMeta(tokenAddressLabel))
	amountLabelRegex       = regexp.MustCompile(regexp.QuoteMeta(amountLabel))

	// Values are read from the text that directly follows the label, on the same line.
	tokenAddressValueRegex = regexp.MustCompile(`^[ \t]*([[:alnum:]]+)`)
	amountValueRegex       = regexp.MustCompile(`^[ \t]*([+\-]?[[:alnum:]]+(?:\.[[:alnum:]]+)?)`)
	digitsRegex            = regexp.MustCompile(`^[0-9]+$`)

	// A word followed by a colon is another label, not a value.
	labelSuffixRegex = regexp.MustCompile(`^[ \t]*:`)

	// Text after the digits that would continue the number: "1,000", "1_000", "1 000".
	amountContinuationRegex = regexp.MustCompile(`^(?:_|[,'][0-9]|[ \t]+[0-9])`)
)

// ErrMalformedInput is the kind shared by every extraction failure.
var ErrMalformedInput = errors.New("malformed input")

// TradeIntent is the structured request found in a post.
// Amount is denominated in lamports.
type TradeIntent struct {
	DestinationAddress string
	Amount             uint64
}

// ExtractionError reports which field of the post could not be extracted.
type ExtractionError struct {
	Field  string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrMalformedInput, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrMalformedInput) hold for every ExtractionError.
func (e *ExtractionError) Is(target error) bool {
	return target == ErrMalformedInput
}

// Kind returns the error kind label used in logs and metrics.
func (e *ExtractionError) Kind() string {
	return "malformed_input"
}

func malformed(field, format string, args ...any) error {
	return &ExtractionError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Extract locates the destination address and the amount in raw.
// It is deterministic and has no side effects.
func Extract(raw string) (TradeIntent, error) {
	address, rest, err := labelledValue(raw, FieldTokenAddress, tokenAddressLabelRegex, tokenAddressValueRegex)
	if err != nil {
		return TradeIntent{}, err
	}
	if labelSuffixRegex.MatchString(rest) {
		return TradeIntent{}, malformed(FieldTokenAddress, "missing value after label")
	}

	amountText, rest, err := labelledValue(raw, FieldAmount, amountLabelRegex, amountValueRegex)
	if err != nil {
		return TradeIntent{}, err
	}
	if labelSuffixRegex.MatchString(rest) {
		return TradeIntent{}, malformed(FieldAmount, "missing value after label")
	}
	if amountContinuationRegex.MatchString(rest) {
		return TradeIntent{}, malformed(FieldAmount, "%q is followed by %q; digit groupings are not accepted", amountText, truncate(rest, 8))
	}

	if !digitsRegex.MatchString(amountText) {
		return TradeIntent{}, malformed(FieldAmount, "%q is not a non-negative integer", amountText)
	}
	amount, err := strconv.ParseUint(amountText, 10, 64)
	if err != nil {
		return TradeIntent{}, malformed(FieldAmount, "%q is out of range", amountText)
	}

	return TradeIntent{
		DestinationAddress: address,
		Amount:             amount,
	}, nil
}

// labelledValue finds the single occurrence of label in raw and reads the value after it.
// It also returns the text following the value.
func labelledValue(raw, field string, label, value *regexp.Regexp) (string, string, error) {
	locs := label.FindAllStringIndex(raw, -1)
	switch len(locs) {
	case 0:
		return "", "", malformed(field, "label %q not found", label.String())
	case 1:
	default:
		return "", "", malformed(field, "label found %d times, expected exactly once", len(locs))
	}

	after := raw[locs[0][1]:]
	m := value.FindStringSubmatchIndex(after)
	if m == nil {
		return "", "", malformed(field, "missing value after label")
	}
	return after[m[2]:m[3]], after[m[1]:], nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

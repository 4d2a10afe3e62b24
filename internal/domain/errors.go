package domain

import "errors"

var (
	ErrInvalidCurrency   = errors.New("currency not part of pair")
	ErrInvalidPair       = errors.New("pair not part of strategy")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrIncompleteQuote   = errors.New("quote side missing")
	ErrBadTriangle       = errors.New("pairs do not form a triangle")
	ErrEmptyBook         = errors.New("order book side is empty")
	ErrUnknownCurrency   = errors.New("no market routes this currency")
	ErrMalformedPair     = errors.New("malformed pair descriptor")
	ErrMalformedStrategy = errors.New("malformed strategy descriptor")
	ErrNotFound          = errors.New("not found")
	ErrWSDisconnect      = errors.New("websocket disconnected")
	ErrLockHeld          = errors.New("lock already held")
)

package pipeline

import (
	"errors"

	"github.com/avoronov/newsmux/app/oracle"
	"github.com/avoronov/newsmux/app/telegram"
)

// Failure kinds the stages distinguish. Transient failures leave the item in
// its pre-call state for the next tick; ContentRejected is a permanent skip
// recorded on the item, not an error state; anything else moves the item to
// error and waits for an explicit retry.
var (
	ErrOracleTransient    = oracle.ErrTransient
	ErrTransportTransient = telegram.ErrTransient
	ErrContentRejected    = errors.New("content rejected")
	ErrPersistence        = errors.New("persistence failure")
)

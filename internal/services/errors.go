package services

import "errors"

var (
	ErrInvalidAmount               = errors.New("invalid amount")
	ErrInsufficientBalance         = errors.New("insufficient balance")
	ErrInsufficientReferralBalance = errors.New("insufficient referral bonus balance")
)

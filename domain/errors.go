package domain

import "errors"

// Relay error taxonomy. Frame and turn level errors are absorbed and
// logged; none of them may drop the call.
var (
	ErrBackendConnect      = errors.New("backend connect failed")
	ErrBackendStream       = errors.New("backend stream failed")
	ErrTranslation         = errors.New("translation failed")
	ErrSynthesis           = errors.New("speech synthesis failed")
	ErrDelivery            = errors.New("subscriber delivery failed")
	ErrTransportDisconnect = errors.New("transport disconnected")
	ErrSessionNotFound     = errors.New("call session not found")
	ErrNotFound            = errors.New("not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)

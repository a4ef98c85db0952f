package models

import "errors"

// ErrExternalService marks a transient failure talking to the payment processor or rate oracle
var ErrExternalService = errors.New("external service error")

// ErrUnsupportedAsset is returned for a symbol missing from the asset catalogue
var ErrUnsupportedAsset = errors.New("unsupported asset")

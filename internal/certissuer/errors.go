package certissuer

import "errors"

var (
	errLengthTooLarge = errors.New("certissuer: DER length >= 65536 not supported")
	errInvalidOID     = errors.New("certissuer: OID needs at least two components")
)

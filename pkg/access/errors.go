package access

import "errors"

var ErrUnknownFeature = errors.New("access: unknown feature")

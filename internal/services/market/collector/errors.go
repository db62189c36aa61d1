package collector

import "github.com/pkg/errors"

var errEmptySeries = errors.New("provider returned no candles")

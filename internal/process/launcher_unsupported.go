//go:build unix && !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package process

import "errors"

var platform launcher = unsupportedLauncher{}

type unsupportedLauncher struct{}

func (unsupportedLauncher) launch(Config, options) (*launched, error) {
	return nil, errors.New("process spawning is not supported on this platform")
}

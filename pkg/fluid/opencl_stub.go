//go:build !opencl

package fluid

import "fmt"

func newOpenCLBackend(w, h int) (Backend, error) {
	return nil, fmt.Errorf("%w: OpenCL support is not enabled; rebuild with -tags opencl", ErrBackendUnavailable)
}

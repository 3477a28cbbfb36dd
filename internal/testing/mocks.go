package testing

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/imamik/ocp-installer/internal/version"
)

// MockResolver is a mock implementation of the driver's version resolver.
// It can be used across all tests that need to stub version resolution.
type MockResolver struct {
	mock.Mock
}

// Resolve returns the stubbed resolution for req.
func (m *MockResolver) Resolve(ctx context.Context, req version.Request) (version.Resolution, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(version.Resolution), args.Error(1)
}

// ResolvesTo stubs every request to resolve to build from source.
func (m *MockResolver) ResolvesTo(build, source string) *MockResolver {
	m.On("Resolve", mock.Anything, mock.Anything).Return(version.Resolution{Build: build, Source: source}, nil)
	return m
}

// StaticResolver resolves every request to one build without expectations.
type StaticResolver struct {
	Build  string
	Source string
	Err    error
}

// Resolve implements the driver's version resolver.
func (r StaticResolver) Resolve(_ context.Context, _ version.Request) (version.Resolution, error) {
	if r.Err != nil {
		return version.Resolution{}, r.Err
	}
	return version.Resolution{Build: r.Build, Source: r.Source}, nil
}

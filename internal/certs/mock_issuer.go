package certs

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockIssuer is a testify mock implementing Issuer.
type MockIssuer struct {
	mock.Mock
}

func (m *MockIssuer) Issue(ctx context.Context, req Request) (Archive, error) {
	args := m.Called(ctx, req)
	if issued, ok := args.Get(0).(Archive); ok {
		return issued, args.Error(1)
	}
	return Archive{}, args.Error(1)
}

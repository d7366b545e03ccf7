package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockManifestStore implements interfaces.ManifestStore for testing
type MockManifestStore struct {
	mock.Mock
	name string
}

func (m *MockManifestStore) FetchManifest(ctx context.Context, network string) (*interfaces.Manifest, error) {
	args := m.Called(ctx, network)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.Manifest), args.Error(1)
}

func (m *MockManifestStore) WriteManifest(ctx context.Context, manifest *interfaces.Manifest) error {
	args := m.Called(ctx, manifest)
	return args.Error(0)
}

func (m *MockManifestStore) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockManifestStore) Name() string {
	return m.name
}

func (m *MockManifestStore) LocationURI() string {
	return "mock:" + m.name
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testManifest(network string) *interfaces.Manifest {
	return &interfaces.Manifest{
		GoodDollar: common.HexToAddress("0x1000000000000000000000000000000000000001"),
		Identity:   common.HexToAddress("0x1000000000000000000000000000000000000002"),
		Avatar:     common.HexToAddress("0x1000000000000000000000000000000000000003"),
		Network:    network,
		NetworkID:  4447,
	}
}

func TestMultiStore_Available(t *testing.T) {
	tests := []struct {
		name     string
		stores   []bool
		expected bool
	}{
		{
			name:     "all stores available",
			stores:   []bool{true, true, true},
			expected: true,
		},
		{
			name:     "some stores available",
			stores:   []bool{false, true, false},
			expected: true,
		},
		{
			name:     "no stores available",
			stores:   []bool{false, false, false},
			expected: false,
		},
		{
			name:     "no stores",
			stores:   []bool{},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stores []interfaces.ManifestStore
			for i, available := range tt.stores {
				m := &MockManifestStore{name: fmt.Sprintf("mock-%d", i)}
				m.On("Available", mock.Anything).Return(available).Maybe()
				stores = append(stores, m)
			}

			multi := NewMultiStore(stores, discardLogger())
			assert.Equal(t, tt.expected, multi.Available(context.Background()))

			for _, s := range stores {
				s.(*MockManifestStore).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStore_FetchManifest(t *testing.T) {
	manifest := testManifest("develop")
	testErr := errors.New("test error")

	tests := []struct {
		name        string
		setupMocks  func() []interfaces.ManifestStore
		expected    *interfaces.Manifest
		expectedErr error
		anyErr      bool
	}{
		{
			name: "first store successful",
			setupMocks: func() []interfaces.ManifestStore {
				m1 := &MockManifestStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("FetchManifest", mock.Anything, "develop").Return(manifest, nil)

				// not consulted once the first store answers
				m2 := &MockManifestStore{name: "mock-B"}

				return []interfaces.ManifestStore{m1, m2}
			},
			expected: manifest,
		},
		{
			name: "first store misses, second has it",
			setupMocks: func() []interfaces.ManifestStore {
				m1 := &MockManifestStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("FetchManifest", mock.Anything, "develop").Return(nil, interfaces.ErrManifestNotFound)

				m2 := &MockManifestStore{name: "mock-B"}
				m2.On("Available", mock.Anything).Return(true)
				m2.On("FetchManifest", mock.Anything, "develop").Return(manifest, nil)

				return []interfaces.ManifestStore{m1, m2}
			},
			expected: manifest,
		},
		{
			name: "every store misses",
			setupMocks: func() []interfaces.ManifestStore {
				m1 := &MockManifestStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("FetchManifest", mock.Anything, "develop").Return(nil, interfaces.ErrManifestNotFound)

				m2 := &MockManifestStore{name: "mock-B"}
				m2.On("Available", mock.Anything).Return(false)

				return []interfaces.ManifestStore{m1, m2}
			},
			expectedErr: interfaces.ErrManifestNotFound,
		},
		{
			name: "all stores fail",
			setupMocks: func() []interfaces.ManifestStore {
				m1 := &MockManifestStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("FetchManifest", mock.Anything, "develop").Return(nil, testErr)

				m2 := &MockManifestStore{name: "mock-B"}
				m2.On("Available", mock.Anything).Return(true)
				m2.On("FetchManifest", mock.Anything, "develop").Return(nil, interfaces.ErrManifestNotFound)

				return []interfaces.ManifestStore{m1, m2}
			},
			expectedErr: testErr,
		},
		{
			name: "no store available",
			setupMocks: func() []interfaces.ManifestStore {
				m1 := &MockManifestStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(false)
				return []interfaces.ManifestStore{m1}
			},
			expectedErr: interfaces.ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores := tt.setupMocks()
			multi := NewMultiStore(stores, discardLogger())

			got, err := multi.FetchManifest(context.Background(), "develop")
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expected, got)

			for _, s := range stores {
				s.(*MockManifestStore).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStore_WriteManifest(t *testing.T) {
	manifest := testManifest("develop")
	testErr := errors.New("test error")

	tests := []struct {
		name        string
		setupMocks  func() []interfaces.ManifestStore
		expectedErr bool
	}{
		{
			name: "all stores successful",
			setupMocks: func() []interfaces.ManifestStore {
				m1 := &MockManifestStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("WriteManifest", mock.Anything, manifest).Return(nil)

				m2 := &MockManifestStore{name: "mock-B"}
				m2.On("Available", mock.Anything).Return(true)
				m2.On("WriteManifest", mock.Anything, manifest).Return(nil)

				return []interfaces.ManifestStore{m1, m2}
			},
		},
		{
			name: "some stores fail",
			setupMocks: func() []interfaces.ManifestStore {
				m1 := &MockManifestStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("WriteManifest", mock.Anything, manifest).Return(nil)

				m2 := &MockManifestStore{name: "mock-B"}
				m2.On("Available", mock.Anything).Return(true)
				m2.On("WriteManifest", mock.Anything, manifest).Return(testErr)

				return []interfaces.ManifestStore{m1, m2}
			},
		},
		{
			name: "all stores fail",
			setupMocks: func() []interfaces.ManifestStore {
				m1 := &MockManifestStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("WriteManifest", mock.Anything, manifest).Return(testErr)

				m2 := &MockManifestStore{name: "mock-B"}
				m2.On("Available", mock.Anything).Return(true)
				m2.On("WriteManifest", mock.Anything, manifest).Return(testErr)

				return []interfaces.ManifestStore{m1, m2}
			},
			expectedErr: true,
		},
		{
			name: "read-only stores do not count",
			setupMocks: func() []interfaces.ManifestStore {
				m1 := &MockManifestStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("WriteManifest", mock.Anything, manifest).Return(interfaces.ErrReadOnlyStore)

				return []interfaces.ManifestStore{m1}
			},
			expectedErr: true,
		},
		{
			name: "unavailable stores are skipped",
			setupMocks: func() []interfaces.ManifestStore {
				m1 := &MockManifestStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(false)
				// WriteManifest should not be called

				m2 := &MockManifestStore{name: "mock-B"}
				m2.On("Available", mock.Anything).Return(true)
				m2.On("WriteManifest", mock.Anything, manifest).Return(nil)

				return []interfaces.ManifestStore{m1, m2}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores := tt.setupMocks()
			multi := NewMultiStore(stores, discardLogger())

			err := multi.WriteManifest(context.Background(), manifest)
			if tt.expectedErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			for _, s := range stores {
				s.(*MockManifestStore).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStore_RejectsInvalidManifest(t *testing.T) {
	m1 := &MockManifestStore{name: "mock-A"}
	multi := NewMultiStore([]interfaces.ManifestStore{m1}, discardLogger())

	err := multi.WriteManifest(context.Background(), &interfaces.Manifest{})
	require.ErrorIs(t, err, interfaces.ErrInvalidManifest)
	m1.AssertExpectations(t)
}

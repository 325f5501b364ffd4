package pkg

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferStatus_String(t *testing.T) {
	tests := []struct {
		status TransferStatus
		want   string
	}{
		{TransferStatusPending, "pending"},
		{TransferStatusSuccess, "success"},
		{TransferStatusError, "error"},
		{TransferStatus(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestTransferStatus_Error(t *testing.T) {
	tests := []struct {
		status  TransferStatus
		wantErr error
	}{
		{TransferStatusSuccess, nil},
		{TransferStatusPending, ErrBusy},
		{TransferStatusError, ErrIO},
		{TransferStatus(42), ErrIO},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			err := tt.status.Error()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSentinelErrors(t *testing.T) {
	// Verify all sentinel errors are distinct
	errs := []error{
		ErrBusy,
		ErrNoDevice,
		ErrNotSupported,
		ErrStale,
		ErrFault,
		ErrIO,
		ErrNoMemory,
		ErrTimeout,
		ErrAlreadyRunning,
		ErrClosed,
		ErrInvalidParameter,
	}

	for i, err1 := range errs {
		require.NotNil(t, err1, "error %d is nil", i)
		for j, err2 := range errs {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("error %d and %d are equal", i, j)
			}
		}
	}
}

func TestSentinelErrors_Wrapped(t *testing.T) {
	err := fmt.Errorf("cmd length 3: %w", ErrNotSupported)
	assert.ErrorIs(t, err, ErrNotSupported)
	assert.NotErrorIs(t, err, ErrFault)
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err     error
		wantMsg string
	}{
		{ErrBusy, "resource busy"},
		{ErrStale, "stale device"},
		{ErrTimeout, "poll timeout"},
		{ErrNoDevice, "device not present"},
		{ErrNoMemory, "insufficient memory"},
	}

	for _, tt := range tests {
		t.Run(tt.wantMsg, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

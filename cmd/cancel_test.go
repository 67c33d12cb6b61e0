package cmd

import (
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestRunCancel_Success(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("Cancel", mock.Anything, uint64(7)).Return(nil)

	cmd := &cobra.Command{}
	err := runCancel(cmd, mockClient, 7)

	assert.NoError(t, err)
	mockClient.AssertExpectations(t)
}

func TestRunCancel_Rejected(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("Cancel", mock.Anything, uint64(9)).Return(errors.New("job not found or already finished"))

	cmd := &cobra.Command{}
	err := runCancel(cmd, mockClient, 9)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

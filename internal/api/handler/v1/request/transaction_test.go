package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateTransactionRequest_Validate(t *testing.T) {
	valid := CreateTransactionRequest{
		EventID:      1,
		TicketTypeID: 2,
		Quantity:     3,
	}

	t.Run("valid request", func(t *testing.T) {
		req := valid
		assert.NoError(t, req.Validate())
	})

	t.Run("zero quantity", func(t *testing.T) {
		req := valid
		req.Quantity = 0
		assert.Error(t, req.Validate())
	})

	t.Run("large quantity is not capped", func(t *testing.T) {
		req := valid
		req.Quantity = 500
		assert.NoError(t, req.Validate())
	})

	t.Run("negative quantity", func(t *testing.T) {
		req := valid
		req.Quantity = -1
		assert.Error(t, req.Validate())
	})

	t.Run("missing event", func(t *testing.T) {
		req := valid
		req.EventID = 0
		assert.Error(t, req.Validate())
	})
}

func TestUpdateTransactionStatusRequest_Validate(t *testing.T) {
	assert.NoError(t, (&UpdateTransactionStatusRequest{Status: "DONE"}).Validate())
	assert.NoError(t, (&UpdateTransactionStatusRequest{Status: "REJECTED"}).Validate())
	assert.Error(t, (&UpdateTransactionStatusRequest{Status: "EXPIRED"}).Validate())
	assert.Error(t, (&UpdateTransactionStatusRequest{Status: ""}).Validate())
}

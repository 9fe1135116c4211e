package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zangapay/escrow.go/lib/service"
)

func TestCalcFee(t *testing.T) {
	tests := []struct {
		amount int64
		bps    int
		fee    int64
	}{
		{100000, 300, 3000},
		{25000, 300, 750},
		{1000000, 50, 5000},
		// rounds toward zero, never over-charging
		{333, 300, 9},
		{1, 300, 0},
		{0, 300, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.fee, service.CalcFee(tt.amount, tt.bps))
	}
}

func TestServiceFeeAndCommission(t *testing.T) {
	svc := &service.EscrowService{Config: &service.Config{ServiceFeeBps: 300, CommissionRateBps: 50}}

	assert.Equal(t, int64(3000), svc.ServiceFee(100000))
	assert.Equal(t, int64(500), svc.CommissionFor(100000))
}

package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalibrationTableValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		table   CalibrationTable
		wantErr string
	}{
		{
			name:  "valid descending table",
			table: CalibrationTable{Prox: []uint16{30, 20, 10, 0}, Dist: []uint16{30, 20, 10, 0}},
		},
		{
			name:    "empty",
			table:   CalibrationTable{},
			wantErr: "empty",
		},
		{
			name:    "column length mismatch",
			table:   CalibrationTable{Prox: []uint16{30, 20}, Dist: []uint16{30}},
			wantErr: "differ in length",
		},
		{
			name:    "ascending proximity column",
			table:   CalibrationTable{Prox: []uint16{10, 20}, Dist: []uint16{10, 20}},
			wantErr: "not descending",
		},
		{
			name:    "repeated threshold",
			table:   CalibrationTable{Prox: []uint16{20, 20}, Dist: []uint16{10, 20}},
			wantErr: "not descending",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.table.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

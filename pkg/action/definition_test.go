package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fptr(f float64) *float64 { return &f }
func iptr(i int) *int         { return &i }

func TestArgumentSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    ArgumentSpec
		wantErr string
	}{
		{
			name: "valid number",
			spec: ArgumentSpec{Name: "amount", Description: "gold", Type: ArgNumber, Min: fptr(1), Max: fptr(100), Step: fptr(1)},
		},
		{
			name: "valid string",
			spec: ArgumentSpec{Name: "message", Description: "text", Type: ArgString, MinLength: iptr(1), MaxLength: iptr(80)},
		},
		{
			name: "valid enum",
			spec: ArgumentSpec{Name: "mood", Description: "tone", Type: ArgEnum, Options: []string{"kind", "cruel"}},
		},
		{
			name: "valid boolean",
			spec: ArgumentSpec{Name: "public", Description: "visible to court", Type: ArgBoolean},
		},
		{
			name:    "empty name",
			spec:    ArgumentSpec{Description: "d", Type: ArgNumber},
			wantErr: "name cannot be empty",
		},
		{
			name:    "empty description",
			spec:    ArgumentSpec{Name: "x", Type: ArgNumber},
			wantErr: "description cannot be empty",
		},
		{
			name:    "non-positive step",
			spec:    ArgumentSpec{Name: "x", Description: "d", Type: ArgNumber, Step: fptr(0)},
			wantErr: "step must be positive",
		},
		{
			name:    "min exceeds max",
			spec:    ArgumentSpec{Name: "x", Description: "d", Type: ArgNumber, Min: fptr(10), Max: fptr(5)},
			wantErr: "min exceeds max",
		},
		{
			name:    "invalid pattern",
			spec:    ArgumentSpec{Name: "x", Description: "d", Type: ArgString, Pattern: "["},
			wantErr: "invalid pattern",
		},
		{
			name:    "min_length exceeds max_length",
			spec:    ArgumentSpec{Name: "x", Description: "d", Type: ArgString, MinLength: iptr(10), MaxLength: iptr(2)},
			wantErr: "min_length exceeds max_length",
		},
		{
			name:    "enum without options",
			spec:    ArgumentSpec{Name: "x", Description: "d", Type: ArgEnum},
			wantErr: "at least one option",
		},
		{
			name:    "unsupported type",
			spec:    ArgumentSpec{Name: "x", Description: "d", Type: "datetime"},
			wantErr: "unsupported type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateArgsDuplicateName(t *testing.T) {
	args := []ArgumentSpec{
		{Name: "amount", Description: "d", Type: ArgNumber},
		{Name: "amount", Description: "d", Type: ArgString},
	}
	assert.ErrorContains(t, ValidateArgs(args), `duplicate argument name "amount"`)
}

func TestValidateArgsEmpty(t *testing.T) {
	assert.NoError(t, ValidateArgs(nil))
	assert.NoError(t, ValidateArgs([]ArgumentSpec{}))
}

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name        string
		phone       string
		countryCode string
		want        string
	}{
		{name: "empty", phone: " ", countryCode: "91", want: ""},
		{name: "international", phone: "+919876543210", countryCode: "91", want: "+919876543210"},
		{name: "grouped international", phone: " +91 (98765) 432-10 ", countryCode: "91", want: "+919876543210"},
		{name: "local", phone: "9876543210", countryCode: "91", want: "+919876543210"},
		{name: "trunk prefix", phone: "09876543210", countryCode: "91", want: "+919876543210"},
		{name: "international prefix", phone: "00919876543210", countryCode: "91", want: "+919876543210"},
		{name: "calling code without plus", phone: "919876543210", countryCode: "91", want: "+919876543210"},
		{name: "no country code", phone: "9876543210", want: "+9876543210"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.phone, tt.countryCode))
		})
	}
}

package shortener

import (
	"strings"
	"testing"
)

func TestValidateSlugFormat(t *testing.T) {
	tests := []struct {
		name    string
		slug    string
		wantErr bool
	}{
		{
			name:    "valid short slug",
			slug:    "abc",
			wantErr: false,
		},
		{
			name:    "valid medium slug",
			slug:    "my-custom-slug",
			wantErr: false,
		},
		{
			name:    "single character slug",
			slug:    "a",
			wantErr: false, // length minimums are enforced by the service layer
		},
		{
			name:    "empty slug",
			slug:    "",
			wantErr: true,
		},
		{
			name:    "slug at max length",
			slug:    strings.Repeat("a", MaxSlugLength),
			wantErr: false,
		},
		{
			name:    "slug over max length",
			slug:    strings.Repeat("a", MaxSlugLength+1),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSlugFormat(tt.slug)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateSlugFormat(%q) error = %v, wantErr %v", tt.slug, err, tt.wantErr)
			}
		})
	}
}

package client_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/houdl/houdl/client"
)

func TestValidate_BuildQuery(t *testing.T) {
	testCases := []struct {
		name     string
		query    client.BuildQuery
		expField string
	}{
		{
			name:  "valid with version",
			query: client.BuildQuery{Product: client.ProductHoudini, Platform: client.PlatformLinux, Version: "20.5"},
		},
		{
			name:  "valid without version",
			query: client.BuildQuery{Product: client.ProductHoudiniLauncher, Platform: client.PlatformWin64},
		},
		{
			name:     "missing product",
			query:    client.BuildQuery{Platform: client.PlatformLinux},
			expField: "product",
		},
		{
			name:     "unknown product",
			query:    client.BuildQuery{Product: "nuke", Platform: client.PlatformLinux},
			expField: "product",
		},
		{
			name:     "unknown platform",
			query:    client.BuildQuery{Product: client.ProductHoudini, Platform: "irix"},
			expField: "platform",
		},
		{
			name:     "version missing minor",
			query:    client.BuildQuery{Product: client.ProductHoudini, Platform: client.PlatformLinux, Version: "20"},
			expField: "version",
		},
		{
			name:     "version with patch",
			query:    client.BuildQuery{Product: client.ProductHoudini, Platform: client.PlatformLinux, Version: "20.5.445"},
			expField: "version",
		},
		{
			name:     "version not numeric",
			query:    client.BuildQuery{Product: client.ProductHoudini, Platform: client.PlatformLinux, Version: "latest"},
			expField: "version",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := client.Validate(tc.query)

			if tc.expField == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			var fields client.FieldErrors
			if !errors.As(err, &fields) {
				t.Fatalf("expected FieldErrors, got %v", err)
			}
			if !strings.Contains(fields.Error(), tc.expField) {
				t.Errorf("expected error naming field %q, got %q", tc.expField, fields.Error())
			}
		})
	}
}

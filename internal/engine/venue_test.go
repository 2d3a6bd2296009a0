package engine

import "testing"

func TestOrderOpenFromStatus(t *testing.T) {
	cases := []struct {
		name string
		resp map[string]any
		want bool
	}{
		{
			name: "resting order",
			resp: map[string]any{
				"status": "order",
				"order":  map[string]any{"status": "open"},
			},
			want: true,
		},
		{
			name: "filled order",
			resp: map[string]any{
				"status": "order",
				"order":  map[string]any{"status": "filled"},
			},
			want: false,
		},
		{
			name: "canceled order",
			resp: map[string]any{
				"status": "order",
				"order":  map[string]any{"status": "canceled"},
			},
			want: false,
		},
		{
			name: "unknown oid",
			resp: map[string]any{"status": "unknownOid"},
			want: false,
		},
		{
			name: "missing order object",
			resp: map[string]any{"status": "order"},
			want: false,
		},
		{
			name: "nil response",
			resp: nil,
			want: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := orderOpenFromStatus(tc.resp); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

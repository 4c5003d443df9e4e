package server

import (
	"net/url"
	"testing"

	"example.com/mkvgate/internal/validate"
)

func TestParseValidateQuery(t *testing.T) {
	tests := []struct {
		query   string
		def     validate.Options
		want    validate.Options
		wantErr bool
	}{
		{query: "", want: validate.Options{}},
		{query: "live", want: validate.Options{Live: true}},
		{query: "divx=true&details=1", want: validate.Options{DivX: true, Details: true}},
		{query: "nowarn=false", def: validate.Options{NoWarn: true}, want: validate.Options{}},
		{query: "stream=true", def: validate.Options{Live: true}, want: validate.Options{Live: true}},
		{query: "live=maybe", wantErr: true},
	}
	for _, tc := range tests {
		q, err := url.ParseQuery(tc.query)
		if err != nil {
			t.Fatal(err)
		}
		got, err := parseValidateQuery(q, tc.def)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tc.query)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", tc.query, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q = %+v, want %+v", tc.query, got, tc.want)
		}
	}
}

func TestProfileList(t *testing.T) {
	list := profileList()
	if len(list) != 6 {
		t.Fatalf("profiles = %+v", list)
	}
	webm := 0
	for _, p := range list {
		if p.WebM {
			webm++
		}
	}
	if webm != 2 {
		t.Fatalf("webm profiles = %d", webm)
	}
}

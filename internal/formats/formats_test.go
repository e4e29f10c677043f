package formats

import "testing"

func TestCanAccept(t *testing.T) {
	cases := []struct {
		a, b Format
		want bool
	}{
		{Bytes, JSONRecord, true},
		{Text, JSONRecord, true},
		{JSON, JSONRecord, true},
		{JSONRecord, JSON, false},
		{NMEA, JSON, false},
		{Unknown, Bytes, false},
		{Bytes, Unknown, false},
		{Python, PythonRecord, true},
		{Bytes, PythonRecord, true},
		{Text, PythonRecord, false},
	}
	for _, c := range cases {
		if got := c.a.CanAccept(c.b); got != c.want {
			t.Errorf("%s.CanAccept(%s) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestCommon(t *testing.T) {
	cases := []struct {
		a, b, want Format
	}{
		{JSON, XML, Text},
		{JSONRecord, JSON, JSON},
		{NMEA, XML, Text},
		{Python, PythonRecord, Python},
		{JSON, Python, Bytes},
		{Unknown, JSON, Unknown},
		{Bytes, Bytes, Bytes},
	}
	for _, c := range cases {
		if got := c.a.Common(c.b); got != c.want {
			t.Errorf("%s.Common(%s) = %s, want %s", c.a, c.b, got, c.want)
		}
	}
}

func TestIsFormat(t *testing.T) {
	if !IsFormat(Unknown) {
		t.Error("Unknown should be a valid format tag")
	}
	if !IsFormat(JSONRecord) {
		t.Error("JSONRecord should be a valid format tag")
	}
	if IsFormat(Format(999)) {
		t.Error("an out-of-range tag should not be a valid format")
	}
}

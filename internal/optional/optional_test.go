package optional

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValue(t *testing.T) {
	t.Run("None creates an empty value", func(t *testing.T) {
		v := None[float64]()
		if v.indirect != nil {
			t.Fatal("should be nil")
		}
		if !v.IsNone() {
			t.Fatal("should be none")
		}
	})

	t.Run("Some works as intended", func(t *testing.T) {
		t.Run("for a zero nonpointer value", func(t *testing.T) {
			v := Some(0.0)
			if v.indirect == nil || *v.indirect != 0 {
				t.Fatal("unexpected indirect")
			}
		})

		t.Run("for a nonzero pointer value", func(t *testing.T) {
			asn := uint(15169)
			v := Some(&asn)
			if v.indirect == nil || **v.indirect != 15169 {
				t.Fatal("unexpected indirect")
			}
		})

		t.Run("for a nil pointer", func(t *testing.T) {
			var asn *uint
			if v := Some(asn); !v.IsNone() {
				t.Fatal("expected none")
			}
		})
	})

	t.Run("UnmarshalJSON works as intended", func(t *testing.T) {
		type record struct {
			Latitude Value[float64]
			Timezone Value[string]
		}

		t.Run("with valid input", func(t *testing.T) {
			var r record
			if err := json.Unmarshal([]byte(`{"Latitude":45.07,"Timezone":"Europe/Rome"}`), &r); err != nil {
				t.Fatal(err)
			}
			if r.Latitude.Unwrap() != 45.07 || r.Timezone.Unwrap() != "Europe/Rome" {
				t.Fatal("unexpected record", r)
			}
		})

		t.Run("with null input", func(t *testing.T) {
			var r record
			if err := json.Unmarshal([]byte(`{"Latitude":null}`), &r); err != nil {
				t.Fatal(err)
			}
			if !r.Latitude.IsNone() || !r.Timezone.IsNone() {
				t.Fatal("expected none")
			}
		})

		t.Run("with incompatible input", func(t *testing.T) {
			var r record
			err := json.Unmarshal([]byte(`{"Latitude":"north"}`), &r)
			if err == nil || err.Error() != "json: cannot unmarshal string into Go struct field record.Latitude of type float64" {
				t.Fatal("unexpected err", err)
			}
			if !r.Latitude.IsNone() {
				t.Fatal("should not have set", r.Latitude)
			}
		})
	})

	t.Run("MarshalJSON works as intended", func(t *testing.T) {
		type record struct {
			ASN   Value[uint]
			Proxy Value[bool]
		}
		got, err := json.Marshal(record{ASN: Some[uint](3269)})
		if err != nil {
			t.Fatal(err)
		}
		expect := []byte(`{"ASN":3269,"Proxy":null}`)
		if diff := cmp.Diff(expect, got); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Unwrap panics for an empty value", func(t *testing.T) {
		var err error
		func() {
			defer func() {
				err = recover().(error)
			}()
			None[string]().Unwrap()
		}()
		if err == nil || err.Error() != "is none" {
			t.Fatal("unexpected err", err)
		}
	})

	t.Run("UnwrapOr works as intended", func(t *testing.T) {
		if v := None[string]().UnwrapOr("UTC"); v != "UTC" {
			t.Fatal("unexpected value", v)
		}
		if v := Some("Asia/Shanghai").UnwrapOr("UTC"); v != "Asia/Shanghai" {
			t.Fatal("unexpected value", v)
		}
	})
}

func TestValueEqual(t *testing.T) {
	if !None[int]().Equal(None[int]()) {
		t.Fatal("two empty values should be equal")
	}
	if None[int]().Equal(Some(0)) {
		t.Fatal("empty and zero should differ")
	}
	if !Some("AS3269").Equal(Some("AS3269")) {
		t.Fatal("same content should be equal")
	}
	if Some(1.5).Equal(Some(2.5)) {
		t.Fatal("different content should differ")
	}
}

package hujsonx

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUnmarshal(t *testing.T) {
	type config struct {
		Version  int
		Backends []string
	}

	t.Run("with comments and trailing commas", func(t *testing.T) {
		input := []byte(`{
			// the config version
			"Version": 1,
			"Backends": ["ipinfo", "ipwhois",], /* remote only */
		}`)
		var got config
		if err := Unmarshal(input, &got); err != nil {
			t.Fatal(err)
		}
		expect := config{Version: 1, Backends: []string{"ipinfo", "ipwhois"}}
		if diff := cmp.Diff(expect, got); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("with invalid input", func(t *testing.T) {
		var got config
		err := Unmarshal([]byte(`{`), &got)
		if err == nil || err.Error() != "hujson: line 1, column 2: parsing value: unexpected EOF" {
			t.Fatal("unexpected err", err)
		}
	})

	t.Run("with incompatible types", func(t *testing.T) {
		var got config
		if err := Unmarshal([]byte(`{"Version": "one"}`), &got); err == nil {
			t.Fatal("expected an error")
		}
	})
}

package codec

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/Suhaibinator/SRest/pkg/common"
)

const formContentType = "application/x-www-form-urlencoded"

func TestFormValues(t *testing.T) {
	var age string
	handler := common.RequestHandlerFunc(func(ctx common.Context, req *common.Request) {
		values, _ := Body[url.Values](req)
		age = values.Get("age")
		ctx.Send(req, common.OK())
	})

	run(t, []byte("age=30&name=john"), formContentType, FormValues(), nil, handler)
	if age != "30" {
		t.Errorf("Expected age %q, got %q", "30", age)
	}
}

func TestFormDecoderTyped(t *testing.T) {
	codec := NewFormCodec[person]()

	p, err := codec.Decode([]byte("name=john&age=30"))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if p.Name != "john" || p.Age != 30 {
		t.Errorf("Expected {john 30}, got %+v", p)
	}

	if _, err := codec.Decode([]byte("age=thirty")); err == nil {
		t.Error("Expected a non-numeric age to fail")
	}
	if _, err := codec.Decode([]byte("%zz")); err == nil {
		t.Error("Expected a malformed body to fail")
	}
}

func TestFormDecoderMultiValue(t *testing.T) {
	type tags struct {
		Tags []string `form:"tag"`
	}
	v, err := NewFormCodec[tags]().Decode([]byte("tag=a&tag=b"))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(v.Tags) != 2 || v.Tags[0] != "a" || v.Tags[1] != "b" {
		t.Errorf("Expected tags [a b], got %v", v.Tags)
	}
}

func TestFormEncode(t *testing.T) {
	codec := NewFormCodec[person]()

	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"url.Values", url.Values{"b": {"2"}, "a": {"1"}}, "a=1&b=2"},
		{"map", map[string]string{"x": "y z"}, "x=y+z"},
		{"struct", person{Name: "john", Age: 30}, "age=30&name=john"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := codec.Encode(tt.value)
			if err != nil {
				t.Fatalf("Failed to encode: %v", err)
			}
			if string(body) != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, body)
			}
		})
	}
}

func TestFormDecoderStage(t *testing.T) {
	var got person
	handler := common.RequestHandlerFunc(func(ctx common.Context, req *common.Request) {
		got, _ = Body[person](req)
		ctx.Send(req, common.OK())
	})

	resp := run(t, []byte("name=john&age=30"), formContentType, FormDecoder[person](), nil, handler)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if got.Age != 30 {
		t.Errorf("Expected age 30, got %d", got.Age)
	}

	resp = run(t, []byte("age=thirty"), formContentType, FormDecoder[person](), nil, handler)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status code %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

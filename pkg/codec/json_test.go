package codec

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/Suhaibinator/SRest/pkg/common"
)

type person struct {
	Name string `json:"name" form:"name"`
	Age  int    `json:"age" form:"age"`
}

func TestJSONCodec(t *testing.T) {
	codec := NewJSONCodec[person]()

	data, err := codec.Decode([]byte(`{"name":"John","age":30}`))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if data.Name != "John" {
		t.Errorf("Expected name to be %q, got %q", "John", data.Name)
	}
	if data.Age != 30 {
		t.Errorf("Expected age to be %d, got %d", 30, data.Age)
	}

	body, err := codec.Encode(data)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	if string(body) != `{"name":"John","age":30}` {
		t.Errorf("Expected encoded body %q, got %q", `{"name":"John","age":30}`, body)
	}
	if codec.ContentType() != "application/json" {
		t.Errorf("Expected content type application/json, got %q", codec.ContentType())
	}
}

func TestJSONStages(t *testing.T) {
	handler := common.RequestHandlerFunc(func(ctx common.Context, req *common.Request) {
		p, ok := Body[person](req)
		if !ok {
			ctx.Error(req, common.NewHTTPError(http.StatusBadRequest, "missing person"))
			return
		}
		p.Age++
		ctx.Send(req, common.OK().WithBody(p))
	})

	resp := run(t, []byte(`{"name":"John","age":30}`), "application/json", JSONDecoder[person](), JSONEncoder(), handler)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %q", resp.Header.Get("Content-Type"))
	}

	var out person
	if err := json.Unmarshal(resp.Body.([]byte), &out); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if out.Age != 31 {
		t.Errorf("Expected age 31, got %d", out.Age)
	}
}

func TestJSONEncoderKeepsContentType(t *testing.T) {
	resp := run(t, nil, "", nil, JSONEncoder(), common.RequestHandlerFunc(func(ctx common.Context, req *common.Request) {
		ctx.Send(req, common.OK().WithBody(map[string]int{"a": 1}).WithHeader("Content-Type", "application/vnd.api+json"))
	}))
	if got := resp.Header.Get("Content-Type"); got != "application/vnd.api+json" {
		t.Errorf("Expected handler Content-Type to be kept, got %q", got)
	}
}

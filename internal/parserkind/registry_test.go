package parserkind

import "testing"

func TestGet_BuiltinHandlers(t *testing.T) {
	tests := []string{"noop", "raw-passthrough"}
	for _, tag := range tests {
		if _, err := Get(tag); err != nil {
			t.Errorf("Get(%q) error = %v, want a registered handler", tag, err)
		}
	}
}

func TestGet_UnknownTag(t *testing.T) {
	if _, err := Get("does-not-exist"); err == nil {
		t.Error("expected an error for an unregistered tag")
	}
}

func TestRegister_PanicsOnDuplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected Register to panic on duplicate tag")
		}
	}()
	Register("noop", NoopHandler{})
}

func TestRawPassthroughHandler(t *testing.T) {
	h := RawPassthroughHandler{}
	product, err := h.Handle([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if string(product.Data) != "hello" {
		t.Errorf("Data = %q, want %q", product.Data, "hello")
	}
}

package payload

import "testing"

func TestTaskValidator(t *testing.T) {
	v, err := TaskValidator()
	if err != nil {
		t.Fatalf("TaskValidator: %v", err)
	}

	valid := []string{
		"",
		"  ",
		`{}`,
		`{"message":"Task due: morning briefing"}`,
		`{"tool":"web_search","args":{"query":"weather"}}`,
		`{"message":"m","tool":"t","args":{}}`,
	}
	for _, doc := range valid {
		if err := v.Validate(doc); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", doc, err)
		}
	}

	invalid := []string{
		`{"message":""}`,
		`{"tool":42}`,
		`{"args":"not an object"}`,
		`{"unexpected":"field"}`,
		`{not json`,
		`"just a string"`,
	}
	for _, doc := range invalid {
		if err := v.Validate(doc); err == nil {
			t.Errorf("Validate(%q) = nil, want error", doc)
		}
	}
}

func TestNewValidatorRejectsBadSchema(t *testing.T) {
	if _, err := NewValidator(`{"type": 12}`); err == nil {
		t.Error("invalid schema compiled")
	}
	if _, err := NewValidator(`{broken`); err == nil {
		t.Error("malformed schema JSON accepted")
	}
}

func TestCustomSchemaNumbers(t *testing.T) {
	v, err := NewValidator(`{
		"type": "object",
		"properties": {"confidence": {"type": "number", "minimum": 0, "maximum": 1}},
		"required": ["confidence"]
	}`)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	if err := v.Validate(`{"confidence": 0.85}`); err != nil {
		t.Errorf("in-range number rejected: %v", err)
	}
	if err := v.Validate(`{"confidence": 1.5}`); err == nil {
		t.Error("out-of-range number accepted")
	}
}

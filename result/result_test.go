package result

import (
	"encoding/json"
	"reflect"
	"testing"
)

func ptr[T any](v T) *T {
	return &v
}

func TestResult_RoundTrip(t *testing.T) {
	tests := []*Result{
		{
			TaskName: "check", Kind: KindCheck, Complete: true, Passing: true,
			Messages: []string{"found hello.cpp"},
		},
		{
			TaskName: "build", Kind: KindBuild, Graded: true, Weight: 2, Complete: true, Passing: false,
			Error: &Error{Kind: ErrorKindFailure, Message: "compile failed", Suggestion: "fix the syntax"},
		},
		{
			TaskName: "run", Kind: KindCorrectness, Complete: true, Passing: false,
			Score:    &Score{Numerator: 1, Denominator: 2},
			Error:    &Error{Kind: ErrorKindFailure, Message: "wrong output", Location: "line 2"},
			Expected: "world",
			Actual:   "word",
		},
		{
			TaskName: "leaks", Kind: KindMemory, Complete: true, Passing: false,
			ErrorCount: ptr(2), LeakedBlocks: ptr(1), LeakedBytes: ptr(64),
		},
		{
			TaskName: "slow", Kind: KindComplexity,
			Error: &Error{Kind: ErrorKindTimeout, Message: "timed out after 1s"},
		},
		{TaskName: "setup", Kind: KindSetup, Complete: true, Passing: true},
		{
			TaskName: "clean", Kind: KindCleanup,
			Error: &Error{Kind: ErrorKindDependencyFailed, Message: "dependency build did not pass"},
		},
	}
	tests[1].Detail("runtime", map[string]any{"code": 1, "stderr": "error: expected ';'"})
	tests[1].Detail("args", []string{"g++", "hello.cpp"})
	tests[1].Detail("limits", struct {
		Memory int `json:"memory"`
	}{Memory: 256})
	for _, want := range tests {
		t.Run(string(want.Kind), func(t *testing.T) {
			data, err := json.Marshal(want)
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}
			got := new(Result)
			if err := json.Unmarshal(data, got); err != nil {
				t.Fatalf("Unmarshal error: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("round trip mismatch\n got: %+v\nwant: %+v", got, want)
			}
		})
	}
}

func TestResult_FieldNames(t *testing.T) {
	r := Fail(KindCorrectness, "expected %q", "hi")
	r.TaskName = "run"
	r.Expected = "hi"
	r.Actual = "ho"
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	for _, k := range []string{"task_name", "complete", "passing", "error", "messages", "details", "expected", "actual"} {
		if _, ok := m[k]; !ok {
			t.Errorf("missing field %q in %s", k, data)
		}
	}
	if _, ok := m["score"]; ok {
		t.Errorf("nil score should be absent: %s", data)
	}
	e := m["error"].(map[string]any)
	if e["kind"] != "FAILURE" {
		t.Errorf("error kind = %v, want FAILURE", e["kind"])
	}
}

func TestErrorKind_UnmarshalJSON_Invalid(t *testing.T) {
	var k ErrorKind
	if err := k.UnmarshalJSON([]byte(`"NOT_A_KIND"`)); err == nil {
		t.Error("expected error for invalid kind string")
	}
	if err := k.UnmarshalJSON([]byte(`"INVALID"`)); err == nil {
		t.Error("expected error for the zero kind")
	}
	if err := k.UnmarshalJSON([]byte(`3`)); err == nil {
		t.Error("expected error for a number")
	}
}

func TestErrorKind_Skipped(t *testing.T) {
	for _, k := range []ErrorKind{ErrorKindDependencyFailed, ErrorKindFiltered, ErrorKindCancelled} {
		if !k.Skipped() {
			t.Errorf("%v should be a skip", k)
		}
	}
	for _, k := range []ErrorKind{ErrorKindFailure, ErrorKindMissingResource, ErrorKindRuntimeFault, ErrorKindTimeout} {
		if k.Skipped() {
			t.Errorf("%v should not be a skip", k)
		}
	}
}

func TestResult_Normalize(t *testing.T) {
	r := &Result{Kind: KindBuild, Passing: true}
	r.Normalize()
	if r.Passing {
		t.Error("incomplete result must not pass")
	}
	if r.Error == nil || r.Error.Kind != ErrorKindFailure {
		t.Errorf("expected FAILURE error, got %+v", r.Error)
	}

	ok := Default(KindCleanup)
	ok.Normalize()
	if !ok.Passing || ok.Error != nil {
		t.Errorf("complete result changed: %+v", ok)
	}
}

func TestResult_Thin(t *testing.T) {
	r := Fail(KindCorrectness, "mismatch")
	r.Error.Traceback = "goroutine 1"
	r.Error.Location = "main.cpp:3"
	r.Error.Suggestion = "check the newline"
	r.Expected = "a"
	r.Actual = "b"
	r.Detail("stdout", "b")

	thin := r.Thin()
	if thin.Details != nil || thin.Expected != nil || thin.Actual != nil {
		t.Errorf("thin result kept diagnostics: %+v", thin)
	}
	if thin.Error.Traceback != "" || thin.Error.Location != "" {
		t.Errorf("thin error kept location: %+v", thin.Error)
	}
	if thin.Error.Suggestion != "check the newline" {
		t.Errorf("thin error lost suggestion")
	}
	if r.Details["stdout"] != "b" || r.Error.Traceback == "" {
		t.Error("Thin modified the original result")
	}
}

func TestScore_Value(t *testing.T) {
	if v := NewScore(1, 4).Value(); v != 0.25 {
		t.Errorf("Value() = %v, want 0.25", v)
	}
	if v := (Score{Numerator: 3}).Value(); v != 0 {
		t.Errorf("Value() with zero denominator = %v, want 0", v)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("memory"); err != nil || k != KindMemory {
		t.Errorf("ParseKind(memory) = %v, %v", k, err)
	}
	if _, err := ParseKind("lint"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestResult_NormalizePlainValues(t *testing.T) {
	r := New(KindCorrectness, false)
	r.Expected = []string{"a", "b"}
	r.Actual = 3
	r.Details = map[string]any{"code": int64(3)}
	r.Normalize()
	if !reflect.DeepEqual(r.Expected, []any{"a", "b"}) || r.Actual != float64(3) || r.Details["code"] != float64(3) {
		t.Errorf("normalized = %+v", r)
	}
}

package jq

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestExecutor_Execute(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		data       any
		want       any
		wantErr    bool
	}{
		{
			name:       "empty expression returns data as-is",
			expression: "",
			data:       map[string]any{"score": 87.5},
			want:       map[string]any{"score": 87.5},
			wantErr:    false,
		},
		{
			name:       "simple field extraction",
			expression: ".status",
			data:       map[string]any{"status": "completed"},
			want:       "completed",
			wantErr:    false,
		},
		{
			name:       "nested field",
			expression: ".summary.total_score",
			data: map[string]any{
				"summary": map[string]any{"total_score": 42.0},
			},
			want:    42.0,
			wantErr: false,
		},
		{
			name:       "array map yields slice",
			expression: ".[] | .id",
			data: []any{
				map[string]any{"id": "basic_01"},
				map[string]any{"id": "basic_02"},
			},
			want:    []any{"basic_01", "basic_02"},
			wantErr: false,
		},
		{
			name:       "missing field yields nil",
			expression: ".absent",
			data:       map[string]any{"status": "completed"},
			want:       nil,
			wantErr:    false,
		},
		{
			name:       "invalid expression",
			expression: ".[",
			data:       map[string]any{"status": "completed"},
			want:       nil,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := NewExecutor(DefaultTimeout, DefaultMaxInputSize)
			got, err := executor.Execute(context.Background(), tt.expression, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Execute() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestExecutor_Filter(t *testing.T) {
	executor := NewExecutor(DefaultTimeout, DefaultMaxInputSize)

	out, err := executor.Filter(context.Background(), ".runs | length", []byte(`{"runs":[{},{},{}]}`))
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if string(out) != "3" {
		t.Errorf("Filter() = %s, want 3", out)
	}

	if _, err := executor.Filter(context.Background(), ".", []byte("not json")); err == nil {
		t.Error("Filter() with invalid JSON expected error, got nil")
	}
}

func TestExecutor_Validate(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		wantErr    bool
	}{
		{
			name:       "empty expression is valid",
			expression: "",
			wantErr:    false,
		},
		{
			name:       "simple expression is valid",
			expression: ".runs[0].status",
			wantErr:    false,
		},
		{
			name:       "invalid expression",
			expression: ".[",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := NewExecutor(DefaultTimeout, DefaultMaxInputSize)
			err := executor.Validate(tt.expression)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExecutor_Timeout(t *testing.T) {
	executor := NewExecutor(100*time.Millisecond, DefaultMaxInputSize)

	// Non-terminating expression must hit the deadline.
	_, err := executor.Execute(context.Background(), "while(true; . + 1)", 0)
	if err == nil {
		t.Error("Execute() expected timeout error, got nil")
	}
}

func TestExecutor_InputSizeLimit(t *testing.T) {
	executor := NewExecutor(DefaultTimeout, 16)

	_, err := executor.Execute(context.Background(), ".", map[string]any{
		"key": "a value longer than sixteen bytes",
	})
	if err == nil {
		t.Error("Execute() expected size limit error, got nil")
	}
}

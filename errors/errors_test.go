package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "minimal",
			err:  &Error{Phase: PhaseDecode, Kind: KindOutOfBounds},
			want: "decode out_of_bounds",
		},
		{
			name: "full",
			err: New(PhaseDecode, KindInvalidData).
				Path("Game.MoveSystem", "OnUpdate").
				Member("Game.MoveSystem::OnUpdate").
				Detail("unknown opcode %d", 999).
				Cause(errors.New("eof")).
				Build(),
			want: "decode invalid_data at Game.MoveSystem/OnUpdate in Game.MoveSystem::OnUpdate: unknown opcode 999: eof",
		},
		{
			name: "not found",
			err:  NotFound(PhaseAnalyze, "Unity.Entities.SystemBase::get_Entities"),
			want: "analyze not_found in Unity.Entities.SystemBase::get_Entities: not found",
		},
		{
			name: "out of bounds",
			err:  OutOfBounds(PhaseDecode, []string{"local"}, 4, 2),
			want: "decode out_of_bounds at local: index 4 out of range [0,2)",
		},
		{
			name: "overflow",
			err:  Overflow(PhaseDecode, nil, uint32(1<<30), "count"),
			want: "decode overflow: 1073741824 exceeds count limit",
		},
		{
			name: "internal",
			err:  Internal(PhaseRewrite, "no execution method for %s", "Job Schedule"),
			want: "rewrite internal: no execution method for Job Schedule",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := fmt.Errorf("outer: %w", Wrap(PhaseLoad, KindNotFound, cause, "read Game.ilm"))
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through the chain")
	}
	if got := KindOf(err); got != KindNotFound {
		t.Errorf("KindOf = %q, want %q", got, KindNotFound)
	}
	if got := KindOf(cause); got != "" {
		t.Errorf("KindOf(plain error) = %q, want empty", got)
	}
}

func TestIs(t *testing.T) {
	err := InvalidData(PhaseDecode, []string{"type"}, "bad kind")
	tests := []struct {
		target error
		want   bool
	}{
		{&Error{Phase: PhaseDecode, Kind: KindInvalidData}, true},
		{&Error{Kind: KindInvalidData}, true},
		{&Error{Phase: PhaseDecode}, true},
		{&Error{}, true},
		{&Error{Phase: PhaseEncode, Kind: KindInvalidData}, false},
		{&Error{Kind: KindInternal}, false},
		{errors.New("other"), false},
	}
	for _, tt := range tests {
		if got := errors.Is(err, tt.target); got != tt.want {
			t.Errorf("Is(%v) = %v, want %v", tt.target, got, tt.want)
		}
	}
}

func TestBuilderCopies(t *testing.T) {
	b := New(PhaseRewrite, KindInternal).Detail("first")
	first := b.Build()
	b.Detail("second")
	if first.Detail != "first" {
		t.Errorf("Build result changed to %q after reuse", first.Detail)
	}
	if v := New(PhaseValidate, KindStack).Value(3).Build().Value; v != 3 {
		t.Errorf("Value = %v, want 3", v)
	}
}
